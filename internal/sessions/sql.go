package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/courtside-storefront/internal/repo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartSession is a row of the cart_sessions table.
type CartSession struct {
	Namespace string    `gorm:"column:namespace;primaryKey"`
	VisitorID string    `gorm:"column:visitor_id;primaryKey"`
	Payload   string    `gorm:"column:payload;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;index:idx_cart_sessions_updated_at"`
}

func (CartSession) TableName() string { return "cart_sessions" }

// SQLStore keeps handles in cart_sessions.
type SQLStore struct {
	repo.Base
	namespace string
	now       func() time.Time
}

func NewSQLStore(db *gorm.DB, namespace string) *SQLStore {
	return &SQLStore{Base: repo.NewBase(db), namespace: namespace, now: time.Now}
}

func (s *SQLStore) Load(ctx context.Context, visitorID string) (string, error) {
	if err := requireVisitor(visitorID); err != nil {
		return "", err
	}
	var row CartSession
	err := s.DB(ctx).
		Where("namespace = ? AND visitor_id = ?", s.namespace, visitorID).
		Take(&row).Error
	if err != nil {
		if repo.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load cart session handle: %w", err)
	}
	return row.Payload, nil
}

func (s *SQLStore) Save(ctx context.Context, visitorID, value string) error {
	if err := requireVisitor(visitorID); err != nil {
		return err
	}
	row := CartSession{
		Namespace: s.namespace,
		VisitorID: visitorID,
		Payload:   value,
		UpdatedAt: s.now().UTC(),
	}
	err := s.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "visitor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save cart session handle: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, visitorID string) error {
	if err := requireVisitor(visitorID); err != nil {
		return err
	}
	err := s.DB(ctx).
		Where("namespace = ? AND visitor_id = ?", s.namespace, visitorID).
		Delete(&CartSession{}).Error
	if err != nil {
		return fmt.Errorf("delete cart session handle: %w", err)
	}
	return nil
}

// SweepExpired deletes handles not written since before cutoff and returns
// how many were removed.
func (s *SQLStore) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB(ctx).
		Where("namespace = ? AND updated_at < ?", s.namespace, cutoff.UTC()).
		Delete(&CartSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep cart session handles: %w", res.Error)
	}
	return res.RowsAffected, nil
}
