package event

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
)

// UpgradeTimecodes rewrites evt into the version 2 timecode shape.
//
// Version 1 carries timecodeStart/timecodeEnd scalars, which become a single
// range (or none when either is missing). Version 2 ranges are re-sorted.
// Any other version cannot be interpreted.
func UpgradeTimecodes(evt Event) (Event, error) {
	var timecodes document.Timecodes
	data := append([]byte(nil), evt.Data...)
	var err error

	switch evt.Version {
	case 1:
		start := gjson.GetBytes(data, "timecodeStart")
		end := gjson.GetBytes(data, "timecodeEnd")
		timecodes = document.Timecodes{}
		if start.Exists() && start.Type == gjson.Number && end.Exists() && end.Type == gjson.Number {
			timecodes = append(timecodes, document.Timecode{int(start.Int()), int(end.Int())})
		}
		if data, err = sjson.DeleteBytes(data, "timecodeStart"); err != nil {
			return Event{}, fmt.Errorf("upgrade %s: %w", evt.Type, err)
		}
		if data, err = sjson.DeleteBytes(data, "timecodeEnd"); err != nil {
			return Event{}, fmt.Errorf("upgrade %s: %w", evt.Type, err)
		}
	case 2:
		raw := gjson.GetBytes(data, "timecodes")
		if raw.Exists() && raw.Type != gjson.Null {
			if err := json.Unmarshal([]byte(raw.Raw), &timecodes); err != nil {
				return Event{}, fmt.Errorf("upgrade %s: decode timecodes: %w", evt.Type, err)
			}
		}
		timecodes = timecodes.Sorted()
		if timecodes == nil {
			timecodes = document.Timecodes{}
		}
	default:
		return Event{}, fmt.Errorf("%w: %s v%d", ErrVersionUnsupported, evt.Type, evt.Version)
	}

	encoded, err := json.Marshal(timecodes)
	if err != nil {
		return Event{}, fmt.Errorf("upgrade %s: %w", evt.Type, err)
	}
	if data, err = sjson.SetRawBytes(data, "timecodes", encoded); err != nil {
		return Event{}, fmt.Errorf("upgrade %s: %w", evt.Type, err)
	}
	evt.Data = data
	evt.Version = 2
	return evt, nil
}
