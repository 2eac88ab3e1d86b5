package esparser

import (
	"fmt"

	"github.com/halvarsson/xvdrd/internal/tspacket"
)

const (
	nalUnitTypeSliceNonIDR = 0x01
	nalUnitTypeSPS         = 0x07
	nalUnitTypePPS         = 0x08
	nalUnitTypeSliceIDR    = 0x05
)

const (
	h264ProfileBaseline = 66
	h264ProfileMain     = 77
	h264ProfileExtended = 88
	h264ProfileHP       = 100
	h264ProfileHi10P    = 110
	h264ProfileHi422    = 122
	h264ProfileHi444    = 244
	h264ProfileCAVLC444 = 44
)

// PixelAspect is a pixel_aspect_ratio num/den pair.
type PixelAspect struct {
	Num int
	Den int
}

var h264AspectRatios = [17]PixelAspect{
	{0, 1}, {1, 1}, {12, 11}, {10, 11}, {16, 11}, {40, 33}, {24, 11}, {20, 11}, {32, 11},
	{80, 33}, {18, 11}, {15, 11}, {64, 33}, {160, 99}, {4, 3}, {3, 2}, {2, 1},
}

// H264SPS holds the fields extracted from an H.264 sequence_parameter_set().
type H264SPS struct {
	Width         int
	Height        int
	PixelAspect   PixelAspect
	DisplayAspect float64
}

func h264ValidProfile(p int) bool {
	switch p {
	case h264ProfileBaseline, h264ProfileMain, h264ProfileExtended, h264ProfileHP,
		h264ProfileHi10P, h264ProfileHi422, h264ProfileHi444, h264ProfileCAVLC444:
		return true
	default:
		return false
	}
}

// FindAnnexBStartCode scans buf for a 3-or-4-byte Annex B start code
// (00 00 01) beginning at or after offset, returning the index of the byte
// immediately following it, or -1 if none is found.
func FindAnnexBStartCode(buf []byte, offset int) int {
	for i := offset; i+3 <= len(buf); i++ {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			return i + 3
		}
	}
	return -1
}

// ExtractSPS locates the first SPS NAL unit in an H.264 Annex B access unit
// and returns its emulation-prevention-stripped RBSP bytes.
func ExtractSPS(data []byte) ([]byte, bool) {
	o := 0
	for {
		next := FindAnnexBStartCode(data, o)
		if next < 0 {
			return nil, false
		}
		o = next
		if o >= len(data) {
			return nil, false
		}
		if data[o]&0x1F == nalUnitTypeSPS && len(data)-o > 1 {
			nalStart := o + 1
			nalEnd := FindAnnexBStartCode(data, nalStart)
			var raw []byte
			if nalEnd < 0 {
				raw = data[nalStart:]
			} else {
				raw = data[nalStart : nalEnd-3]
			}
			return tspacket.RemoveEmulationPrevention(raw), true
		}
		o++
	}
}

// ParseH264SPS decodes an emulation-prevention-free H.264 SPS RBSP.
func ParseH264SPS(rbsp []byte) (H264SPS, error) {
	var sps H264SPS
	bs := tspacket.NewBitReader(rbsp)

	profileU, err := bs.ReadBits(8)
	if err != nil {
		return sps, err
	}
	profileIDC := int(profileU)
	if !h264ValidProfile(profileIDC) {
		return sps, fmt.Errorf("esparser: invalid h264 profile idc %d", profileIDC)
	}

	bs.ReadBits(8) // constraint flags + reserved
	bs.ReadBits(8) // level idc
	bs.ReadUE()    // seq_parameter_set_id

	switch profileIDC {
	case h264ProfileHP, h264ProfileHi10P, h264ProfileHi422, h264ProfileHi444, h264ProfileCAVLC444:
		chromaFormatIDC, _ := bs.ReadUE()
		if chromaFormatIDC == 3 {
			bs.ReadBits(1) // residual_colour_transform_flag
		}
		bs.ReadUE() // bit_depth_luma_minus8
		bs.ReadUE() // bit_depth_chroma_minus8
		bs.ReadBits(1)
		scalingMatrixPresent, _ := bs.ReadBits(1)
		if scalingMatrixPresent == 1 {
			for i := 0; i < 8; i++ {
				present, _ := bs.ReadBits(1)
				if present == 1 {
					size := 16
					if i >= 6 {
						size = 64
					}
					bs.SkipScalingList(size)
				}
			}
		}
	}

	bs.ReadUE() // log2_max_frame_num_minus4
	picOrderCntType, _ := bs.ReadUE()

	switch picOrderCntType {
	case 0:
		bs.ReadUE() // log2_max_pic_order_cnt_lsb_minus4
	case 1:
		bs.ReadBits(1) // delta_pic_order_always_zero_flag
		bs.ReadSE()    // offset_for_non_ref_pic
		bs.ReadSE()    // offset_for_top_to_bottom_field
		cycle, _ := bs.ReadUE()
		for i := uint(0); i < cycle; i++ {
			bs.ReadSE()
		}
	default:
		if picOrderCntType != 2 {
			return sps, fmt.Errorf("esparser: invalid h264 pic_order_cnt_type %d", picOrderCntType)
		}
	}

	bs.ReadUE()    // max_num_ref_frames
	bs.ReadBits(1) // gaps_in_frame_num_allowed

	widthMbsU, _ := bs.ReadUE()
	heightMapUnitsU, _ := bs.ReadUE()
	frameMbsOnly, _ := bs.ReadBits(1)

	width := (int(widthMbsU) + 1) * 16
	height := (int(heightMapUnitsU) + 1) * 16 * (2 - int(frameMbsOnly))

	if frameMbsOnly == 0 {
		bs.ReadBits(1) // mb_adaptive_frame_field_flag
	}
	bs.ReadBits(1) // direct_8x8_inference_flag

	cropFlag, _ := bs.ReadBits(1)
	if cropFlag == 1 {
		cropLeft, _ := bs.ReadUE()
		cropRight, _ := bs.ReadUE()
		cropTop, _ := bs.ReadUE()
		cropBottom, _ := bs.ReadUE()

		width -= 2 * int(cropLeft+cropRight)
		if frameMbsOnly == 1 {
			height -= 2 * int(cropTop+cropBottom)
		} else {
			height -= 4 * int(cropTop+cropBottom)
		}
	}

	sps.Width = width
	sps.Height = height
	sps.PixelAspect = PixelAspect{0, 1}

	vuiPresent, _ := bs.ReadBits(1)
	if vuiPresent == 1 {
		aspectInfoPresent, _ := bs.ReadBits(1)
		if aspectInfoPresent == 1 {
			idcU, _ := bs.ReadBits(8)
			idc := int(idcU)
			if idc == 255 {
				numU, _ := bs.ReadBits(16)
				denU, _ := bs.ReadBits(16)
				sps.PixelAspect = PixelAspect{int(numU), int(denU)}
			} else if idc < len(h264AspectRatios) {
				sps.PixelAspect = h264AspectRatios[idc]
			}
		}
	}

	if height > 0 && sps.PixelAspect.Den > 0 {
		sps.DisplayAspect = float64(sps.PixelAspect.Num) / float64(sps.PixelAspect.Den) * float64(width) / float64(height)
	}

	return sps, nil
}

// ExtractNAL locates the first NAL unit of the given type in an Annex B
// access unit and returns its emulation-prevention-stripped RBSP.
func ExtractNAL(data []byte, nalType byte) ([]byte, bool) {
	o := 0
	for {
		next := FindAnnexBStartCode(data, o)
		if next < 0 {
			return nil, false
		}
		o = next
		if o >= len(data) {
			return nil, false
		}
		if data[o]&0x1F == nalType && len(data)-o > 1 {
			nalStart := o + 1
			nalEnd := FindAnnexBStartCode(data, nalStart)
			var raw []byte
			if nalEnd < 0 {
				raw = data[nalStart:]
			} else {
				raw = data[nalStart : nalEnd-3]
			}
			return tspacket.RemoveEmulationPrevention(raw), true
		}
		o++
	}
}

// ExtractPPS locates the first PPS NAL unit (type 8) in an Annex B access
// unit.
func ExtractPPS(data []byte) ([]byte, bool) {
	return ExtractNAL(data, nalUnitTypePPS)
}

// h264SliceTypeToFrameType maps slice_type (mod 5, per the H.264 spec's
// "+5" aliasing for all-slices-same-type pictures) to a FrameType.
func h264SliceTypeToFrameType(sliceType uint) FrameType {
	switch sliceType % 5 {
	case 0:
		return FrameP
	case 1:
		return FrameB
	case 2:
		return FrameI
	case 3:
		return FrameP // SP
	case 4:
		return FrameI // SI
	default:
		return FrameUnknown
	}
}

// ParseH264SliceType scans an Annex B access unit for its first slice NAL
// unit (type 1 or 5) and returns the frame type decoded from its
// slice_header. An IDR slice (type 5) is always an I-frame.
func ParseH264SliceType(data []byte) (FrameType, bool) {
	o := 0
	for {
		next := FindAnnexBStartCode(data, o)
		if next < 0 {
			return FrameUnknown, false
		}
		o = next
		if o >= len(data) {
			return FrameUnknown, false
		}
		nalType := data[o] & 0x1F
		if nalType == nalUnitTypeSliceIDR {
			return FrameI, true
		}
		if nalType == nalUnitTypeSliceNonIDR {
			end := o + 8
			if end > len(data) {
				end = len(data)
			}
			if end <= o+1 {
				return FrameUnknown, false
			}
			rbsp := tspacket.RemoveEmulationPrevention(data[o+1 : end])
			bs := tspacket.NewBitReader(rbsp)
			bs.ReadUE() // first_mb_in_slice
			sliceType, err := bs.ReadUE()
			if err != nil {
				return FrameUnknown, false
			}
			return h264SliceTypeToFrameType(sliceType), true
		}
		o++
	}
}
