package core

import (
	"github.com/google/uuid"
)

type RequestID string

func NewRequestID() RequestID {
	return RequestID("req_" + uuid.NewString())
}
