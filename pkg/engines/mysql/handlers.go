package mysql

import (
	"github.com/google/uuid"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
)

// RegisterDefaultHandlers installs the MySQL UUID-storage handlers on a
// handler registry. MySQL has no uuid type; the storage convention decides
// the wire representation, which the generic semantic cast cannot know.
func RegisterDefaultHandlers(reg *sqltypes.HandlerRegistry) {
	reg.Register("binary(16)", binaryUUIDHandler{})
	reg.Register("char(32)", hexUUIDHandler{})
}

// binaryUUIDHandler stores UUIDs as raw 16 bytes.
type binaryUUIDHandler struct{}

func (binaryUUIDHandler) RequiresCasting(value any) bool {
	_, isBytes := value.([]byte)
	return !isBytes
}

func (binaryUUIDHandler) Cast(value any, _ sqltypes.Context) (any, error) {
	u, err := parseUUID(value)
	if err != nil {
		return nil, err
	}
	return u[:], nil
}

// hexUUIDHandler stores UUIDs as 32 hex digits without dashes.
type hexUUIDHandler struct{}

func (hexUUIDHandler) RequiresCasting(value any) bool {
	s, isString := value.(string)
	return !isString || len(s) != 32
}

func (hexUUIDHandler) Cast(value any, _ sqltypes.Context) (any, error) {
	u, err := parseUUID(value)
	if err != nil {
		return nil, err
	}
	hex := u.String()
	return hex[:8] + hex[9:13] + hex[14:18] + hex[19:23] + hex[24:], nil
}

func parseUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return uuid.UUID{}, &apperrors.CastError{Value: value, Type: "uuid", Hint: "expected 8-4-4-4-12 hex digits"}
		}
		return u, nil
	default:
		return uuid.UUID{}, &apperrors.CastError{Value: value, Type: "uuid", Hint: "expected 8-4-4-4-12 hex digits"}
	}
}
