package core

import (
	"fmt"
	"math/rand"
	"time"
)

// Magical reference date is Mon Jan 2 15:04:05 MST 2006
// Time AVP is the number of seconds since 1/1/1970
var ZeroRadiusTime, _ = time.Parse("2006-01-02T15:04:05 MST", "1970-01-01T00:00:00 UTC")
var TimeFormatString = "2006-01-02T15:04:05 MST"

// Generates a random authenticator
func BuildRandomAuthenticator() [16]byte {
	var authenticator [16]byte
	rand.Read(authenticator[:])
	return authenticator
}

// Generates a random salt
func BuildRandomSalt() [2]byte {
	salt := make([]byte, 2)
	rand.Read(salt)
	return [2]byte{salt[0], salt[1]}
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("cannot convert %T %v to int64", value, value)
	}
}
