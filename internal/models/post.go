package models

// Category is one of a fixed set of post topics. The empty category is allowed.
type Category string

const (
	CategoryNone    Category = ""
	CategoryDaily   Category = "Daily"
	CategoryTravel  Category = "Travel"
	CategoryFood    Category = "Food"
	CategoryFashion Category = "Fashion"
	CategoryHobby   Category = "Hobby"
	CategoryPets    Category = "Pets"
	CategoryTech    Category = "Tech"
	CategoryOther   Category = "Other"
)

// Categories lists every selectable category in display order.
var Categories = []Category{
	CategoryDaily, CategoryTravel, CategoryFood, CategoryFashion,
	CategoryHobby, CategoryPets, CategoryTech, CategoryOther,
}

// Valid reports whether c is empty or a member of Categories.
func (c Category) Valid() bool {
	if c == CategoryNone {
		return true
	}
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Post is stored at users/{owner}/posts/{id}. The id is unique within the owner's collection.
type Post struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	ImageURLs []string  `json:"image_urls"`
	Category  Category  `json:"category"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// Ref returns the address of the post.
func (p *Post) Ref() PostRef {
	return PostRef{OwnerID: p.OwnerID, PostID: p.ID}
}

// PostRef addresses a post by owner and per-owner id.
type PostRef struct {
	OwnerID string `json:"owner_id"`
	PostID  string `json:"post_id"`
}

// Like is stored at users/{owner}/posts/{post}/likes/{user}. Its existence is the like state.
type Like struct {
	UserID    string    `json:"user_id"`
	CreatedAt Timestamp `json:"created_at"`
}

// LikeState is the per-viewer engagement snapshot of one post.
type LikeState struct {
	PostRef
	Liked bool `json:"liked"`
	Count int  `json:"likes_count"`
}

// SavePostRequest is the non-file part of the multipart create/update form.
type SavePostRequest struct {
	Title         string   `form:"title" validate:"max=120"`
	Content       string   `form:"content" validate:"max=5000"`
	Category      string   `form:"category"`
	KeepImageURLs []string `form:"keep_image_urls"`
}
