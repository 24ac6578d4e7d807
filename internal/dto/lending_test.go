package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-lending/internal/model"
)

func TestNewBorrowingResponse(t *testing.T) {
	borrowed := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	rec := &model.BorrowingRecord{
		BorrowingID: 7,
		StudentID:   1,
		BookID:      2,
		BorrowedAt:  borrowed,
		Status:      model.BorrowStatusBorrowed,
	}

	resp := NewBorrowingResponse(rec)
	assert.Equal(t, uint64(7), resp.BorrowingID)
	assert.Equal(t, "2025-10-01T09:00:00Z", resp.BorrowedAt)
	assert.Nil(t, resp.ReturnedAt)

	returned := borrowed.AddDate(0, 0, 3)
	rec.ReturnedAt = &returned
	rec.Status = model.BorrowStatusReturned

	resp = NewBorrowingResponse(rec)
	require.NotNil(t, resp.ReturnedAt)
	assert.Equal(t, "2025-10-04T09:00:00Z", *resp.ReturnedAt)
	assert.Equal(t, model.BorrowStatusReturned, resp.Status)
}
