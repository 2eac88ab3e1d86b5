package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/halvarsson/xvdrd/internal/metadata"
	"github.com/halvarsson/xvdrd/internal/protocol"
)

// handleRecordingsGetDiskSpace implements OPCODE 100: no request fields.
// Response: U32 totalMB | U32 freeMB | U32 percentUsed, read straight off
// the filesystem holding the configured time-shift directory.
func handleRecordingsGetDiskSpace(ctx context.Context, d *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	usage, err := disk.UsageWithContext(ctx, d.cfg.Timeshift.Dir)
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings get disk space: %w", err)
	}
	space := metadata.ComputeDiskSpace(usage.Total, usage.Free)

	payload := protocol.NewPayloadWriter().
		U32(space.TotalMB).
		U32(space.FreeMB).
		U32(space.PercentUsed).
		Bytes()
	return payload, nil
}

// handleRecordingsGetCount implements OPCODE 101: no request fields, U32
// count response.
func handleRecordingsGetCount(ctx context.Context, d *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	count, err := d.store.RecordingsCount(ctx)
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings get count: %w", err)
	}
	return protocol.NewPayloadWriter().U32(uint32(count)).Bytes(), nil
}

// handleRecordingsGetList implements OPCODE 102: no request fields.
// Response: U32 count, then per recording in start-time order: U32 startTime | U32 duration
// | U32 priority | U32 lifetime | String channelName | String title |
// String subtitle | String description | String directory | U32 uid, the
// version-2 field order (directory+uid in place of v1's bare filename).
func handleRecordingsGetList(ctx context.Context, d *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	recs, err := d.store.RecordingsList(ctx)
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings get list: %w", err)
	}

	w := protocol.NewPayloadWriter().U32(uint32(len(recs)))
	for _, rec := range recs {
		w.U32(uint32(metadata.ToUnixSeconds(rec.StartTime))).
			U32(uint32(rec.Duration)).
			U32(uint32(rec.Priority)).
			U32(uint32(rec.Lifetime)).
			String(rec.ChannelName).
			String(rec.Title).
			String(rec.Subtitle).
			String(rec.Description).
			String(rec.Directory).
			U32(rec.UID)
	}
	return w.Bytes(), nil
}

// handleRecordingsRename implements OPCODE 103: U32 uid | String newTitle.
// Response: U32 code. The original reports os.rename's own raw return
// value here; this rewrite normalizes that to OK/DATAUNKNOWN/DATAINVALID
// the way every other catalog mutation does, since nothing in this wire's
// own client expects a raw errno.
func handleRecordingsRename(ctx context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	uid, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recordings rename: %w", err)
	}
	newTitle, err := r.String()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recordings rename: %w", err)
	}

	rec, err := d.store.RecordingByUID(ctx, uid)
	if errors.Is(err, metadata.ErrNotFound) {
		return codedReply(protocol.KindDataUnknown, nil), nil
	}
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings rename: %w", err)
	}

	newPath := filepath.Join(filepath.Dir(rec.Path), newTitle)
	if err := os.Rename(rec.Path, newPath); err != nil {
		return codedReply(protocol.KindDataInvalid, nil), nil
	}

	if err := d.store.RenameRecording(ctx, uid, newTitle); err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings rename: %w", err)
	}
	return codedReply(protocol.KindOK, nil), nil
}

// handleRecordingsDelete implements OPCODE 104: U32 uid. Response: U32
// code — DATAUNKNOWN if the uid is unknown, else OK after removing the
// on-disk directory and the catalog row.
func handleRecordingsDelete(ctx context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	uid, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recordings delete: %w", err)
	}

	rec, err := d.store.RecordingByUID(ctx, uid)
	if errors.Is(err, metadata.ErrNotFound) {
		return codedReply(protocol.KindDataUnknown, nil), nil
	}
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings delete: %w", err)
	}

	if err := os.RemoveAll(rec.Path); err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings delete: %w", err)
	}
	if err := d.store.DeleteRecording(ctx, uid); err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings delete: %w", err)
	}
	return codedReply(protocol.KindOK, nil), nil
}

// handleRecordingsGetArtwork implements the supplemental OPCODE 105: U32
// uid. Response: U32 code | String artworkPath | String artworkHash.
func handleRecordingsGetArtwork(ctx context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	uid, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recordings get artwork: %w", err)
	}

	rec, err := d.store.RecordingByUID(ctx, uid)
	if errors.Is(err, metadata.ErrNotFound) {
		return codedReply(protocol.KindDataUnknown, nil), nil
	}
	if err != nil {
		return nil, protocol.NewError(protocol.KindError, "recordings get artwork: %w", err)
	}

	payload := protocol.NewPayloadWriter().
		U32(uint32(protocol.KindOK.Code())).
		String(rec.ArtworkPath).
		String(rec.ArtworkHash).
		Bytes()
	return payload, nil
}

// handleRecordingsSetArtwork implements the supplemental OPCODE 106: U32 uid
// | String artworkPath | String artworkHash. Response: U32 code.
func handleRecordingsSetArtwork(ctx context.Context, d *Dispatcher, _ *Session, r *protocol.PayloadReader) ([]byte, *protocol.Error) {
	uid, err := r.U32()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recordings set artwork: %w", err)
	}
	path, err := r.String()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recordings set artwork: %w", err)
	}
	hash, err := r.String()
	if err != nil {
		return nil, protocol.NewError(protocol.KindDataInvalid, "recordings set artwork: %w", err)
	}

	if err := d.store.SetArtwork(ctx, uid, path, hash); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return codedReply(protocol.KindDataUnknown, nil), nil
		}
		return nil, protocol.NewError(protocol.KindError, "recordings set artwork: %w", err)
	}
	return codedReply(protocol.KindOK, nil), nil
}
