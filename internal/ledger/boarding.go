package ledger

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"school_ledger/internal/domain"
)

// AssignHostel places a student in a hostel and charges the hostel's
// boarding fee for the term
func (l *Ledger) AssignHostel(ctx context.Context, hostelID, studentID uint, due time.Time) (*domain.FeeAssignment, error) {
	var out *domain.FeeAssignment
	err := l.tx(ctx, func(tx *gorm.DB) error {
		var h domain.Hostel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&h, hostelID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return errors.Wrap(err, "lock hostel")
		}
		st, err := lockStudent(tx, studentID)
		if err != nil {
			return err
		}
		if st.HostelID != nil && *st.HostelID == h.ID {
			return ErrAlreadyBoarder
		}
		var occupants int64
		if err := tx.Model(&domain.Student{}).Where("hostel_id = ? AND active = ?", h.ID, true).Count(&occupants).Error; err != nil {
			return errors.Wrap(err, "count occupants")
		}
		if occupants >= int64(h.Capacity) {
			return ErrHostelFull
		}
		if err := tx.Model(&domain.Student{}).Where("id = ?", st.ID).Update("hostel_id", h.ID).Error; err != nil {
			return errors.Wrap(err, "assign hostel")
		}
		if !h.BoardingFee.IsPositive() {
			return nil
		}
		out, err = l.assign(tx, AssignFeeInput{
			StudentID:   st.ID,
			Description: "Boarding fee: " + h.Name,
			Category:    domain.CategoryBoarding,
			Amount:      h.BoardingFee,
			DueDate:     due,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
