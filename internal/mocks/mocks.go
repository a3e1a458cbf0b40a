package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"chat-gateway/internal/models"
	"chat-gateway/internal/upload"
)

type RoomReaderMock struct {
	mock.Mock
}

func (m *RoomReaderMock) RecentMessages(ctx context.Context, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, limit)
	var msgs []*models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]*models.Message)
	}
	return msgs, args.Error(1)
}

func (m *RoomReaderMock) Sessions(ctx context.Context) ([]models.Session, error) {
	args := m.Called(ctx)
	var sessions []models.Session
	if val := args.Get(0); val != nil {
		sessions = val.([]models.Session)
	}
	return sessions, args.Error(1)
}

type UploaderMock struct {
	mock.Mock
}

// Save drains r so callers see the same read behaviour as the disk uploader.
func (m *UploaderMock) Save(ctx context.Context, originalName, declaredType string, r io.Reader) (upload.Result, error) {
	_, _ = io.Copy(io.Discard, r)
	args := m.Called(ctx, originalName, declaredType)
	var res upload.Result
	if val := args.Get(0); val != nil {
		res = val.(upload.Result)
	}
	return res, args.Error(1)
}

var _ upload.Uploader = (*UploaderMock)(nil)
var _ interface {
	RecentMessages(context.Context, int) ([]*models.Message, error)
	Sessions(context.Context) ([]models.Session, error)
} = (*RoomReaderMock)(nil)
