// X API v2 endpoints used for publishing
//
// Wire types follow https://docs.x.com/x-api/posts/creation-of-a-post
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
)

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type userResponse struct {
	Data struct {
		ID              string `json:"id"`
		Username        string `json:"username"`
		Name            string `json:"name"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

// PostItem creates one post. mediaIDs and replyToID are optional; a non-empty
// replyToID chains the post under that post.
func (c *APIClient) PostItem(ctx context.Context, text string, mediaIDs []string, replyToID string) (*PostResult, error) {
	req := tweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		req.Media = &tweetMedia{MediaIDs: mediaIDs}
	}
	if replyToID != "" {
		req.Reply = &tweetReply{InReplyToTweetID: replyToID}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidRequest, err)
	}

	body, err := c.Do(ctx, http.MethodPost, "/tweets", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	var resp tweetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Kind: shared.ErrDecoding, Detail: err.Error()}
	}
	if resp.Data.ID == "" {
		return nil, &APIError{Kind: shared.ErrDecoding, Detail: "response has no post id"}
	}

	c.logger.Info("posted", "id", resp.Data.ID, "reply_to", replyToID, "media", len(mediaIDs))
	return &PostResult{ID: resp.Data.ID, Text: resp.Data.Text}, nil
}

// GetCurrentUser returns the signed-in account. The first successful answer is
// cached for the lifetime of the client.
func (c *APIClient) GetCurrentUser(ctx context.Context) (*models.AuthenticatedUser, error) {
	c.mu.Lock()
	cached := c.user
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	body, err := c.Do(ctx, http.MethodGet, "/users/me?user.fields=profile_image_url", nil, "")
	if err != nil {
		return nil, err
	}

	var resp userResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Kind: shared.ErrDecoding, Detail: err.Error()}
	}
	if resp.Data.ID == "" {
		return nil, &APIError{Kind: shared.ErrDecoding, Detail: "response has no user id"}
	}

	user := &models.AuthenticatedUser{
		ID:        resp.Data.ID,
		Username:  resp.Data.Username,
		Name:      resp.Data.Name,
		AvatarURL: resp.Data.ProfileImageURL,
	}

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	return user, nil
}

// ClearUser drops the cached account, e.g. after signing out.
func (c *APIClient) ClearUser() {
	c.mu.Lock()
	c.user = nil
	c.mu.Unlock()
}
