package patpmt

import "github.com/halvarsson/xvdrd/internal/crc32mpeg"

func verifyCRC32(data []byte) error {
	return crc32mpeg.Verify(data)
}
