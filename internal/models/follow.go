package models

// Follow is stored under the follower at users/{follower}/following/{followee}
// and mirrored at users/{followee}/followers/{follower}.
type Follow struct {
	FollowerID string    `json:"follower_id"`
	FolloweeID string    `json:"followee_id"`
	CreatedAt  Timestamp `json:"created_at"`
}
