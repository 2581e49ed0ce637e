package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"krl-safety-backend/internal/apperr"
	"krl-safety-backend/internal/model"
)

// UpsertSubscription creates or replaces the subscription for its endpoint.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_id"}),
		}).
		Create(&sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetSubscription(ctx context.Context, officerID, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).
		Where("endpoint = ? AND user_id = ?", endpoint, officerID).
		First(&sub).Error
	if err != nil {
		return model.PushSubscription{}, notFoundOr(err, "subscription", endpoint)
	}
	return sub, nil
}

// DeleteSubscription removes an officer's own subscription.
func (s *gormStore) DeleteSubscription(ctx context.Context, officerID, endpoint string) error {
	res := s.db.WithContext(ctx).
		Where("endpoint = ? AND user_id = ?", endpoint, officerID).
		Delete(&model.PushSubscription{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("subscription", endpoint)
	}
	return nil
}

// DeleteSubscriptionByEndpoint prunes a subscription the push service rejected.
func (s *gormStore) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// SubscriptionsForTrain returns the subscriptions of officers whose active
// assignment is trainID.
func (s *gormStore) SubscriptionsForTrain(ctx context.Context, trainID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN user_krl ON user_krl.user_id = push_subscriptions.user_id").
		Where("user_krl.krl_id = ? AND user_krl.is_active = ?", trainID, true).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for train %q: %w", trainID, err)
	}
	return subs, nil
}
