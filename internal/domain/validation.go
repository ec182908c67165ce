package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidGroupID = errors.New("invalid group id")
	ErrInvalidChatID  = errors.New("invalid chat id")
	ErrAmountTooLarge = errors.New("amount exceeds maximum allowed")
	ErrNoteTooLong    = errors.New("note exceeds maximum length")
)

// Validation constants
const (
	MaxGroupIDLength = 64
	MaxNoteLength    = 512
	MaxAmount        = "1000000000" // 1 billion per operation
)

// ValidateGroupID validates a group identifier.
func ValidateGroupID(groupID string) error {
	groupID = strings.TrimSpace(groupID)

	if groupID == "" {
		return fmt.Errorf("%w: group id cannot be empty", ErrInvalidGroupID)
	}

	if len(groupID) > MaxGroupIDLength {
		return fmt.Errorf("%w: group id exceeds %d characters", ErrInvalidGroupID, MaxGroupIDLength)
	}

	return nil
}

// ValidateChatID validates a chat identifier.
func ValidateChatID(chatID int64) error {
	if chatID == 0 {
		return ErrInvalidChatID
	}
	return nil
}

// ValidateAmount validates a monetary operation amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	maxAmount, _ := decimal.NewFromString(MaxAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}

	return nil
}

// ValidateNote validates a free-text expense note.
func ValidateNote(note string) error {
	if len(note) > MaxNoteLength {
		return fmt.Errorf("%w: note size %d exceeds limit of %d", ErrNoteTooLong, len(note), MaxNoteLength)
	}
	return nil
}

// ValidatePagination clamps pagination parameters to sane bounds.
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
