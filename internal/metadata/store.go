package metadata

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup by UID/number finds no row,
// matching the VDR_RET_DATAUNKNOWN/VDR_RET_DATAINVALID paths of
// cmdcontrol.c's Timer/Recordings handlers.
var ErrNotFound = errors.New("metadata: not found")

// Store is the Recordings/Timers catalog, backed by *DB.
type Store struct {
	db *DB
}

// NewStore wraps an already-opened *DB.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// RecordingsCount returns the number of catalogued recordings, as served by
// RECORDINGS_GETCOUNT.
func (s *Store) RecordingsCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Recording{}).Count(&count).Error
	return count, err
}

// RecordingsList returns every recording ordered by start time, the field
// order RECORDINGS_GETLIST walks to build its per-recording response.
func (s *Store) RecordingsList(ctx context.Context) ([]Recording, error) {
	var recs []Recording
	err := s.db.WithContext(ctx).Order("start_time").Find(&recs).Error
	return recs, err
}

// RecordingByUID looks up one recording by its wire UID.
func (s *Store) RecordingByUID(ctx context.Context, uid uint32) (Recording, error) {
	var rec Recording
	err := s.db.WithContext(ctx).First(&rec, uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Recording{}, ErrNotFound
	}
	return rec, err
}

// AddRecording inserts a new catalog row, returning the UID the wire
// protocol will reference it by from then on.
func (s *Store) AddRecording(ctx context.Context, rec Recording) (uint32, error) {
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, err
	}
	return rec.UID, nil
}

// RenameRecording updates a recording's title, backing RECORDINGS_RENAME.
// Only the title column changes; the row's Path is not touched. The on-disk
// directory is renamed by the RECORDINGS_RENAME handler in internal/dispatch
// before it calls this.
func (s *Store) RenameRecording(ctx context.Context, uid uint32, newTitle string) error {
	res := s.db.WithContext(ctx).Model(&Recording{}).Where("uid = ?", uid).Update("title", newTitle)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRecording removes a catalog row.
func (s *Store) DeleteRecording(ctx context.Context, uid uint32) error {
	res := s.db.WithContext(ctx).Delete(&Recording{}, uid)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetArtwork records the artwork path/hash for a recording, the supplemental
// pairing to src/recordings/artwork.cpp's poster lookup.
func (s *Store) SetArtwork(ctx context.Context, uid uint32, path, hash string) error {
	res := s.db.WithContext(ctx).Model(&Recording{}).Where("uid = ?", uid).
		Updates(map[string]any{"artwork_path": path, "artwork_hash": hash})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TimersCount returns the number of scheduled timers, served by
// TIMER_GETCOUNT.
func (s *Store) TimersCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Timer{}).Count(&count).Error
	return count, err
}

// TimerByNumber looks up a single timer by its 1-based wire number.
func (s *Store) TimerByNumber(ctx context.Context, number uint32) (Timer, error) {
	var t Timer
	err := s.db.WithContext(ctx).First(&t, number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Timer{}, ErrNotFound
	}
	return t, err
}

// TimersList returns every timer ordered by number, the order
// TIMER_GETLIST walks.
func (s *Store) TimersList(ctx context.Context) ([]Timer, error) {
	var timers []Timer
	err := s.db.WithContext(ctx).Order("number").Find(&timers).Error
	return timers, err
}

// ErrDuplicateTimer is returned by AddTimer when an active timer already
// covers the same channel and time window, matching
// processTIMER_Add's VDR_RET_DATALOCKED path.
var ErrDuplicateTimer = errors.New("metadata: duplicate timer")

// AddTimer inserts a new timer after checking for a schedule conflict on
// the same channel.
func (s *Store) AddTimer(ctx context.Context, t Timer) (uint32, error) {
	var conflict int64
	err := s.db.WithContext(ctx).Model(&Timer{}).
		Where("channel_uid = ? AND active = ? AND start_time < ? AND stop_time > ?",
			t.ChannelUID, true, t.StopTime, t.StartTime).
		Count(&conflict).Error
	if err != nil {
		return 0, err
	}
	if conflict > 0 {
		return 0, ErrDuplicateTimer
	}

	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return 0, err
	}
	return t.Number, nil
}

// ErrTimerRunning is returned by DeleteTimer when a recording is in progress
// and force wasn't requested, matching VDR_RET_RECRUNNING.
var ErrTimerRunning = errors.New("metadata: timer is currently recording")

// DeleteTimer removes a timer. If it is currently recording, the caller
// must pass force to proceed anyway.
func (s *Store) DeleteTimer(ctx context.Context, number uint32, force bool) error {
	t, err := s.TimerByNumber(ctx, number)
	if err != nil {
		return err
	}
	if t.Recording && !force {
		return ErrTimerRunning
	}

	res := s.db.WithContext(ctx).Delete(&Timer{}, number)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTimer replaces a timer's mutable fields, backing TIMER_UPDATE's
// full-field-set request form.
func (s *Store) UpdateTimer(ctx context.Context, number uint32, t Timer) error {
	t.Number = number
	res := s.db.WithContext(ctx).Model(&Timer{}).Where("number = ?", number).Updates(t)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTimerActive flips a timer's active flag only, backing TIMER_UPDATE's
// short request form (index + active, no further fields).
func (s *Store) SetTimerActive(ctx context.Context, number uint32, active bool) error {
	res := s.db.WithContext(ctx).Model(&Timer{}).Where("number = ?", number).Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DiskSpace reports total/free megabytes and percent used, backing
// RECORDINGS_GETDISKSPACE. The dispatch handler builds it with
// ComputeDiskSpace from the usage of the filesystem holding the configured
// time-shift directory.
type DiskSpace struct {
	TotalMB     uint32
	FreeMB      uint32
	PercentUsed uint32
}

// ComputeDiskSpace derives percent-used from raw byte counts the caller
// obtained from the filesystem (e.g. via syscall.Statfs on the recordings
// directory).
func ComputeDiskSpace(totalBytes, freeBytes uint64) DiskSpace {
	const mb = 1 << 20
	totalMB := uint32(totalBytes / mb)
	freeMB := uint32(freeBytes / mb)
	var percent uint32
	if totalMB > 0 {
		percent = uint32((uint64(totalMB-freeMB) * 100) / uint64(totalMB))
	}
	return DiskSpace{TotalMB: totalMB, FreeMB: freeMB, PercentUsed: percent}
}

// UnixTime converts one of the wire's unix-second fields (recording start
// time, timer start/stop) into a time.Time.
func UnixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// ToUnixSeconds is UnixTime's inverse, for building wire responses out of
// catalog rows.
func ToUnixSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
