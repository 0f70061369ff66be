package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "threads")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	if got, err := NextSequence(tx, "threads"); err != nil || got != 4 {
		t.Fatalf("expected 4 inside the transaction, got %d, %v", got, err)
	}
	tx.Rollback()

	if got, _ := NextSequence(db, "threads"); got != 4 {
		t.Errorf("rolled back sequence should be reused, got %d", got)
	}
}

func TestThreadRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewThreadRepository(db)
		thread := models.NewThread("first", "second")
		second := thread.Items()[1]
		att := models.NewAttachment([]byte("png-bytes"), []byte("thumb"), "image/png", "a cat")
		if err := second.AddAttachment(att); err != nil {
			t.Fatalf("add attachment: %v", err)
		}

		if err := repo.Create(thread); err != nil {
			t.Fatalf("failed to create thread: %v", err)
		}
		if thread.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", thread.Sequence())
		}

		got, err := repo.Get(thread.ID())
		if err != nil {
			t.Fatalf("failed to get thread: %v", err)
		}

		items := got.Items()
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].Text() != "first" || items[1].Text() != "second" {
			t.Errorf("unexpected item order %q %q", items[0].Text(), items[1].Text())
		}
		if items[1].ThreadID() != thread.ID() {
			t.Errorf("item not linked to thread")
		}

		atts := items[1].Attachments()
		if len(atts) != 1 {
			t.Fatalf("expected 1 attachment, got %d", len(atts))
		}
		if string(atts[0].Data()) != "png-bytes" || string(atts[0].Thumbnail()) != "thumb" {
			t.Error("attachment data not round-tripped")
		}
		if atts[0].AltText() != "a cat" || atts[0].MediaType() != "image/png" || atts[0].ItemID() != second.ID() {
			t.Errorf("unexpected attachment %+v", atts[0])
		}
		if got.Status() != models.StatusEditing {
			t.Errorf("expected editing, got %s", got.Status())
		}
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			_, err := NewThreadRepository(db).Get("nonexistent-id")
			if !errors.Is(err, shared.ErrThreadNotFound) {
				t.Errorf("expected ErrThreadNotFound, got %v", err)
			}
		})

		t.Run("BySequence", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewThreadRepository(db)
			a, b := models.NewThread("a"), models.NewThread("b")
			repo.Create(a)
			repo.Create(b)

			got, err := repo.GetBySequence(2)
			if err != nil {
				t.Fatalf("GetBySequence failed: %v", err)
			}
			if got.ID() != b.ID() {
				t.Errorf("expected thread %s, got %s", b.ID(), got.ID())
			}
			if _, err := repo.GetBySequence(9); !errors.Is(err, shared.ErrThreadNotFound) {
				t.Errorf("expected ErrThreadNotFound, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("replaces items", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewThreadRepository(db)
			thread := models.NewThread("a", "b", "c")
			if err := repo.Create(thread); err != nil {
				t.Fatalf("failed to create thread: %v", err)
			}

			if err := thread.RemoveItem(thread.Items()[0].ID()); err != nil {
				t.Fatalf("remove item: %v", err)
			}
			first := thread.Items()[0]
			first.SetStatus(models.StatusPosted)
			first.SetPostID("1001")
			thread.SetStatus(models.StatusFailed)
			thread.SetFailureMessage("server error")
			thread.SetGroupID("group-1")

			if err := repo.Update(thread); err != nil {
				t.Fatalf("failed to update thread: %v", err)
			}

			got, err := repo.Get(thread.ID())
			if err != nil {
				t.Fatalf("failed to get thread: %v", err)
			}
			items := got.Items()
			if len(items) != 2 || items[0].Text() != "b" || items[1].Text() != "c" {
				t.Fatalf("unexpected items after update")
			}
			if items[0].PostID() != "1001" || items[0].Status() != models.StatusPosted {
				t.Errorf("item state not persisted: %s %s", items[0].PostID(), items[0].Status())
			}
			if got.Status() != models.StatusFailed || got.FailureMessage() != "server error" || got.GroupID() != "group-1" {
				t.Errorf("thread state not persisted")
			}
			if n := countRows(t, db, "thread_items"); n != 2 {
				t.Errorf("expected 2 item rows, got %d", n)
			}
		})

		t.Run("persists media ids", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewThreadRepository(db)
			thread := models.NewThread("")
			att := models.NewAttachment([]byte{1, 2, 3}, nil, "image/gif", "")
			thread.Items()[0].AddAttachment(att)
			repo.Create(thread)

			att.SetMediaID("m-1")
			if err := repo.Update(thread); err != nil {
				t.Fatalf("failed to update thread: %v", err)
			}

			got, _ := repo.Get(thread.ID())
			if ids := got.Items()[0].MediaIDs(); len(ids) != 1 || ids[0] != "m-1" {
				t.Errorf("unexpected media ids %v", ids)
			}
		})

		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			err := NewThreadRepository(db).Update(models.NewThread("x"))
			if !errors.Is(err, shared.ErrThreadNotFound) {
				t.Errorf("expected ErrThreadNotFound, got %v", err)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("removes children", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewThreadRepository(db)
			thread := models.NewThread("a", "b")
			thread.Items()[0].AddAttachment(models.NewAttachment([]byte("x"), nil, "image/png", ""))
			repo.Create(thread)

			if err := repo.Delete(thread.ID()); err != nil {
				t.Fatalf("failed to delete thread: %v", err)
			}
			for _, table := range []string{"threads", "thread_items", "attachments"} {
				if n := countRows(t, db, table); n != 0 {
					t.Errorf("expected no rows in %s, got %d", table, n)
				}
			}
		})

		t.Run("keeps published history", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			threads := NewThreadRepository(db)
			history := NewPublishedPostRepository(db)
			thread := models.NewThread("a")
			threads.Create(thread)
			history.Create(models.NewPublishedPost("55", "a", 0, "", 0, time.Now()))

			if err := threads.Delete(thread.ID()); err != nil {
				t.Fatalf("failed to delete thread: %v", err)
			}
			if n := countRows(t, db, "published_posts"); n != 1 {
				t.Errorf("expected history to survive, got %d rows", n)
			}
		})

		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			if err := NewThreadRepository(db).Delete("nonexistent-id"); !errors.Is(err, shared.ErrThreadNotFound) {
				t.Errorf("expected ErrThreadNotFound, got %v", err)
			}
		})
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewThreadRepository(db)
		a, b, c := models.NewThread("a"), models.NewThread("b"), models.NewThread("c")
		b.SetStatus(models.StatusFailed)
		for _, th := range []*models.Thread{a, b, c} {
			if err := repo.Create(th); err != nil {
				t.Fatalf("failed to create thread: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list threads: %v", err)
		}
		if len(all) != 3 || all[0].ID() != a.ID() || all[2].ID() != c.ID() {
			t.Fatalf("expected threads in sequence order")
		}

		failed, err := repo.List(map[string]any{"status": models.StatusFailed})
		if err != nil {
			t.Fatalf("failed to list threads: %v", err)
		}
		if len(failed) != 1 || failed[0].ID() != b.ID() {
			t.Errorf("expected only the failed thread")
		}

		editing, _ := repo.List(map[string]any{"status": "editing"})
		if len(editing) != 2 {
			t.Errorf("expected 2 editing threads, got %d", len(editing))
		}
	})

	t.Run("Create rejects invalid thread", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		thread := models.NewThread("a", "b")
		thread.Items()[1].SetSortOrder(7)
		if err := NewThreadRepository(db).Create(thread); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestPublishedPostRepository(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Create and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPublishedPostRepository(db)
		post := models.NewPublishedPost("900", "hello", 2, "group-1", 1, base)
		if err := repo.Create(post); err != nil {
			t.Fatalf("failed to create post: %v", err)
		}

		got, err := repo.Get(post.ID())
		if err != nil {
			t.Fatalf("failed to get post: %v", err)
		}
		if got.PostID() != "900" || got.Text() != "hello" || got.AttachmentCount() != 2 {
			t.Errorf("unexpected post %+v", got)
		}
		if got.GroupID() != "group-1" || got.Position() != 1 {
			t.Errorf("unexpected grouping %s/%d", got.GroupID(), got.Position())
		}
		if got.ViewURL() != models.ViewURL("900") {
			t.Errorf("unexpected view url %s", got.ViewURL())
		}
		if !got.PublishedAt().Equal(base) {
			t.Errorf("expected %v, got %v", base, got.PublishedAt())
		}

		byPost, err := repo.GetByPostID("900")
		if err != nil || byPost.ID() != post.ID() {
			t.Errorf("GetByPostID returned %v, %v", byPost, err)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPublishedPostRepository(db)

		if _, err := repo.Get("nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete("nonexistent-id"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Create(models.NewPublishedPost("", "x", 0, "", 0, base)); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}

		post := models.NewPublishedPost("1", "x", 0, "", 0, base)
		repo.Create(post)
		if err := repo.Create(models.NewPublishedPost("1", "dup", 0, "", 0, base)); err == nil {
			t.Error("expected error for duplicate post id")
		}
		if err := repo.Update(post); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPublishedPostRepository(db)
		solo := models.NewPublishedPost("1", "solo", 0, "", 0, base)
		first := models.NewPublishedPost("2", "first", 0, "g", 0, base.Add(time.Minute))
		second := models.NewPublishedPost("3", "second", 1, "g", 1, base.Add(time.Minute))
		for _, p := range []*models.PublishedPost{second, solo, first} {
			if err := repo.Record(p); err != nil {
				t.Fatalf("failed to record post: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list posts: %v", err)
		}
		got := ""
		for _, p := range all {
			got += p.PostID()
		}
		if got != "123" {
			t.Errorf("expected oldest first, got %s", got)
		}

		recent, _ := repo.List(map[string]any{"limit": 2})
		if len(recent) != 2 || recent[0].PostID() != "2" || recent[1].PostID() != "3" {
			t.Errorf("expected the two most recent posts")
		}

		group, err := repo.ListByGroup("g")
		if err != nil {
			t.Fatalf("failed to list group: %v", err)
		}
		if len(group) != 2 || group[0].Position() != 0 || group[1].Position() != 1 {
			t.Errorf("expected group ordered by position")
		}

		filtered, _ := repo.List(map[string]any{"thread_group_id": "g"})
		if len(filtered) != 2 {
			t.Errorf("expected 2 posts in group, got %d", len(filtered))
		}

		if err := repo.Delete(solo.ID()); err != nil {
			t.Fatalf("failed to delete post: %v", err)
		}
		if n := countRows(t, db, "published_posts"); n != 2 {
			t.Errorf("expected 2 posts remaining, got %d", n)
		}
	})
}
