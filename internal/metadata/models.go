package metadata

import "time"

// Recording is one on-disk recording's catalog row: the metadata the
// RECORDINGS_* opcodes serve, separate from the segment bytes
// internal/recording reads directly off disk. UID is the stable identifier
// clients see on the wire (cRecordingsCache::Register's uint32 registration
// id, here just the row's auto-increment primary key).
type Recording struct {
	UID         uint32 `gorm:"primarykey;autoIncrement"`
	Path        string `gorm:"size:1024;not null;uniqueIndex"`
	Title       string `gorm:"size:512;not null"`
	Directory   string `gorm:"size:512"`
	ChannelName string `gorm:"size:255"`
	Subtitle    string `gorm:"size:1024"`
	Description string `gorm:"type:text"`

	StartTime time.Time
	Duration  int // seconds
	Priority  int
	Lifetime  int

	// ArtworkPath/ArtworkHash back the supplemental GET_ARTWORK/SET_ARTWORK
	// opcodes: src/recordings/artwork.cpp keeps a poster/fanart path per
	// recording. Serving the bytes is out of scope; the row is what the
	// rest of the recordings code expects to find.
	ArtworkPath string `gorm:"size:1024"`
	ArtworkHash string `gorm:"size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timer is one scheduled recording timer, mirroring cTimer's flat field set
// (cTimer::Parse's colon-separated line, without VDR's own serialization
// format since this store owns its rows directly).
type Timer struct {
	Number uint32 `gorm:"primarykey;autoIncrement"`

	Active     bool
	ChannelUID uint32 `gorm:"index"`
	Priority   int
	Lifetime   int

	StartTime int64 // unix seconds
	StopTime  int64
	Day       int64
	WeekDays  uint32

	File string `gorm:"size:512"`
	Aux  string `gorm:"type:text"`

	Recording bool // currently recording
	Pending   bool // about to start

	CreatedAt time.Time
	UpdatedAt time.Time
}
