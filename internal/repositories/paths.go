package repositories

import (
	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/models"
)

// ErrNotFound is returned by repositories when the addressed document is absent.
var ErrNotFound = docstore.ErrNotFound

func UserPath(uid string) string { return docstore.Path("users", uid) }

func PostsCollection(ownerID string) string { return docstore.Path("users", ownerID, "posts") }

func PostPath(ref models.PostRef) string {
	return docstore.Path(PostsCollection(ref.OwnerID), ref.PostID)
}

func LikesCollection(ref models.PostRef) string { return docstore.Path(PostPath(ref), "likes") }

func LikePath(ref models.PostRef, uid string) string {
	return docstore.Path(LikesCollection(ref), uid)
}

func CommentsCollection(ref models.PostRef) string { return docstore.Path(PostPath(ref), "comments") }

func FollowingCollection(uid string) string { return docstore.Path("users", uid, "following") }

func FollowersCollection(uid string) string { return docstore.Path("users", uid, "followers") }

func NotificationsCollection(uid string) string {
	return docstore.Path("users", uid, "notifications")
}

func MessagesCollection(uid string) string { return docstore.Path("users", uid, "messages") }

// decodeAll decodes every document into T and lets setID copy the document id.
func decodeAll[T any](docs []*docstore.Document, setID func(*T, string)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.DataTo(&v); err != nil {
			return nil, err
		}
		if setID != nil {
			setID(&v, d.ID)
		}
		out = append(out, v)
	}
	return out, nil
}

// Page bounds a listing ordered by creation time, newest first.
type Page struct {
	// Before is an exclusive created_at cursor; zero starts at the newest item.
	Before models.Timestamp
	// Limit of 0 returns everything.
	Limit int
}

func (p Page) apply(q docstore.Query) docstore.Query {
	q.OrderBy = "created_at"
	q.Desc = true
	q.Limit = p.Limit
	if !p.Before.IsZero() {
		q.StartAfter = p.Before.Millis()
	}
	return q
}
