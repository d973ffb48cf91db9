// Package reviews stores the ratings customers leave after delivery.
package reviews

import (
	"context"
	"errors"
	"time"
)

// ErrReviewNotFound indicates the requested review id does not exist.
var ErrReviewNotFound = errors.New("reviews: review not found")

// Review is one rating, optionally with free-text feedback.
type Review struct {
	ID        string    `dynamodbav:"reviewId" json:"id"`
	Identity  string    `dynamodbav:"identity" json:"identity"`
	OrderID   string    `dynamodbav:"orderId" json:"orderId"`
	Rating    int       `dynamodbav:"rating" json:"rating"`
	Feedback  string    `dynamodbav:"feedback,omitempty" json:"feedback,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// Store persists reviews.
type Store interface {
	Save(ctx context.Context, r Review) error
	AttachFeedback(ctx context.Context, id, feedback string) error
	Get(ctx context.Context, id string) (Review, error)
}

// ValidRating reports whether n is on the 1..5 scale.
func ValidRating(n int) bool {
	return n >= 1 && n <= 5
}
