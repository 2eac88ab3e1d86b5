package dispatch

import (
	"context"
	"errors"

	"github.com/halvarsson/xvdrd/internal/metadata"
	"github.com/halvarsson/xvdrd/internal/protocol"
)

// handleTimerGetCount implements OPCODE 80: no request fields, U32 count
// response.
func handleTimerGetCount(ctx context.Context, d *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	count, err := d.store.TimersCount(ctx)
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "timer get count: %w", err)
	}
	return protocol.NewPayloadWriter().U32(uint32(count)).Bytes(), nil
}

// writeTimerFields appends one timer's processTIMER_Get/GetList field set:
// U32 index+1 | U32 active | U32 recording | U32 pending | U32 priority |
// U32 lifetime | U32 channelNumber | U32 channelUID | U32 startTime | U32
// stopTime | U32 day | U32 weekdays | String file. channelNumber is always
// 0 here: this catalog keys timers by channel UID only (v2's own field),
// and nothing downstream reads the v1 number column it sits next to.
func writeTimerFields(w *protocol.PayloadWriter, t metadata.Timer) {
	var active, recording, pending uint32
	if t.Active {
		active = 1
	}
	if t.Recording {
		recording = 1
	}
	if t.Pending {
		pending = 1
	}
	w.U32(t.Number).
		U32(active).
		U32(recording).
		U32(pending).
		U32(uint32(t.Priority)).
		U32(uint32(t.Lifetime)).
		U32(0).
		U32(t.ChannelUID).
		U32(uint32(t.StartTime)).
		U32(uint32(t.StopTime)).
		U32(uint32(t.Day)).
		U32(t.WeekDays).
		String(t.File)
}

// handleTimerGet implements OPCODE 81: U32 number. Response: U32 code
// followed by writeTimerFields's fields on success, a bare code on
// DATAUNKNOWN.
func handleTimerGet(ctx context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	number, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "timer get: %w", err)
	}

	t, err := d.store.TimerByNumber(ctx, number)
	if errors.Is(err, metadata.ErrNotFound) {
		return codedReply(protocol.KindDataUnknown, nil), nil
	}
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "timer get: %w", err)
	}

	w := protocol.NewPayloadWriter().U32(uint32(protocol.KindOK.Code()))
	writeTimerFields(w, t)
	return w.Bytes(), nil
}

// handleTimerGetList implements OPCODE 82: no request fields. Response: U32
// count followed by writeTimerFields's fields per timer, with no per-row
// code prefix.
func handleTimerGetList(ctx context.Context, d *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	timers, err := d.store.TimersList(ctx)
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "timer get list: %w", err)
	}

	w := protocol.NewPayloadWriter().U32(uint32(len(timers)))
	for _, t := range timers {
		writeTimerFields(w, t)
	}
	return w.Bytes(), nil
}

// readTimerRequest parses processTIMER_Add's full request field set: U32
// active | U32 priority | U32 lifetime | U32 channelUID | U32 startTime |
// U32 stopTime | U32 day | U32 weekdays | String file | String aux.
func readTimerRequest(r *protocol.PayloadReader) (metadata.Timer, error) {
	var t metadata.Timer

	active, err := r.U32()
	if err != nil {
		return t, err
	}
	priority, err := r.U32()
	if err != nil {
		return t, err
	}
	lifetime, err := r.U32()
	if err != nil {
		return t, err
	}
	channelUID, err := r.U32()
	if err != nil {
		return t, err
	}
	startTime, err := r.U32()
	if err != nil {
		return t, err
	}
	stopTime, err := r.U32()
	if err != nil {
		return t, err
	}
	day, err := r.U32()
	if err != nil {
		return t, err
	}
	weekDays, err := r.U32()
	if err != nil {
		return t, err
	}
	file, err := r.String()
	if err != nil {
		return t, err
	}
	if _, err := r.String(); err != nil { // aux, unused by this catalog
		return t, err
	}

	t.Active = active != 0
	t.Priority = int(priority)
	t.Lifetime = int(lifetime)
	t.ChannelUID = channelUID
	t.StartTime = int64(startTime)
	t.StopTime = int64(stopTime)
	t.Day = int64(day)
	t.WeekDays = weekDays
	t.File = file
	return t, nil
}

// handleTimerAdd implements OPCODE 83. Response: U32 code — OK, DATALOCKED
// on a schedule conflict, or DATAINVALID on a malformed request.
func handleTimerAdd(ctx context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	t, err := readTimerRequest(r)
	if err != nil {
		return codedReply(protocol.KindDataInvalid, nil), nil
	}

	if _, err := d.store.AddTimer(ctx, t); err != nil {
		if errors.Is(err, metadata.ErrDuplicateTimer) {
			return codedReply(protocol.KindDataLocked, nil), nil
		}
		return nil, protocol.NewError(protocol.KindError, "timer add: %w", err)
	}
	return codedReply(protocol.KindOK, nil), nil
}

// handleTimerDelete implements OPCODE 84: U32 number | U32 force. Response:
// U32 code — DATAINVALID if unknown, RECRUNNING if recording and not
// forced, else OK.
func handleTimerDelete(ctx context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	number, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "timer delete: %w", err)
	}
	force, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "timer delete: %w", err)
	}

	err = d.store.DeleteTimer(ctx, number, force != 0)
	switch {
	case err == nil:
		return codedReply(protocol.KindOK, nil), nil
	case errors.Is(err, metadata.ErrNotFound):
		return codedReply(protocol.KindDataInvalid, nil), nil
	case errors.Is(err, metadata.ErrTimerRunning):
		return codedReply(protocol.KindRecRunning, nil), nil
	default:
		return nil, protocol.NewError(protocol.KindError, "timer delete: %w", err)
	}
}

// handleTimerUpdate implements OPCODE 85. A request body of exactly 8 bytes
// is the short form (U32 number | U32 active); anything else is the full
// readTimerRequest shape with a leading number. Response: U32 code —
// DATAUNKNOWN if missing, DATAINVALID on a malformed full-form body, else
// OK.
func handleTimerUpdate(ctx context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	if r.Remaining() == 8 {
		number, err := r.U32()
		if err != nil {
			return nil, protocol.NewError(protocol.KindDataInvalid, "timer update: %w", err)
		}
		active, err := r.U32()
		if err != nil {
			return nil, protocol.NewError(protocol.KindDataInvalid, "timer update: %w", err)
		}
		if err := d.store.SetTimerActive(ctx, number, active != 0); err != nil {
			if errors.Is(err, metadata.ErrNotFound) {
				return codedReply(protocol.KindDataUnknown, nil), nil
			}
			return nil, protocol.NewError(protocol.KindError, "timer update: %w", err)
		}
		return codedReply(protocol.KindOK, nil), nil
	}

	number, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "timer update: %w", err)
	}
	t, err := readTimerRequest(r)
	if err != nil {
		return codedReply(protocol.KindDataInvalid, nil), nil
	}

	if err := d.store.UpdateTimer(ctx, number, t); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return codedReply(protocol.KindDataUnknown, nil), nil
		}
		return nil, protocol.NewError(protocol.KindError, "timer update: %w", err)
	}
	return codedReply(protocol.KindOK, nil), nil
}
