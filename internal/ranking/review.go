package ranking

import (
	"errors"
	"fmt"
	"time"

	"github.com/meltforce/ironpro/internal/models"
)

// Decision is a trainer's verdict on a pending award.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

var (
	ErrAlreadyReviewed = errors.New("award already reviewed")
	ErrInvalidDecision = errors.New("decision must be approve or reject")
)

// ParseDecision validates a decision string.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case Approve, Reject:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDecision, s)
}

// Status returns the award status a decision leads to.
func (d Decision) Status() models.XPStatus {
	if d == Approve {
		return models.XPApproved
	}
	return models.XPRejected
}

// Review applies d to a pending award. An award can be reviewed once.
func Review(a *models.XPAward, d Decision, at time.Time) error {
	if d != Approve && d != Reject {
		return fmt.Errorf("%w: %q", ErrInvalidDecision, d)
	}
	if a.Status != models.XPPending {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyReviewed, a.ID, a.Status)
	}
	a.Status = d.Status()
	a.ReviewedAt = &at
	return nil
}
