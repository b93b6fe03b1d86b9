package config

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var durationType = reflect.TypeOf(time.Duration(0))

// decodeOption is the decoder configuration for every Unmarshal in this
// package: viper's string hooks plus bare-number durations.
func decodeOption() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		millisecondsHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// millisecondsHook decodes a bare number into a time.Duration as
// milliseconds, so kill_timeout: 3000 and KILL_TIMEOUT=3000 both mean 3s.
// Strings with a unit ("3s") fall through to the standard hook.
func millisecondsHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	var ms float64
	switch v := data.(type) {
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case uint64:
		ms = float64(v)
	case float64:
		ms = v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return data, nil
		}
		ms = n
	default:
		return data, nil
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
