package esparser

import "github.com/halvarsson/xvdrd/internal/tspacket"

// H.265/HEVC NAL unit types, Table 7-1.
const (
	nalBLAWLP      = 16
	nalCRANUT      = 21
	nalVPSNUT      = 32
	nalSPSNUT      = 33
	nalPPSNUT      = 34
	h265HeaderBits = 2 // forbidden_zero_bit + nal_unit_type occupies bits [1:7] of byte 0
)

// H265AccessUnit summarizes one H.265 access unit's NAL content: whether it
// contains a key-frame NAL, and any SPS/PPS/VPS RBSP payloads found.
type H265AccessUnit struct {
	KeyFrame bool
	SPS      []byte
	PPS      []byte
	VPS      []byte
}

func h265NALType(b byte) int {
	return int(b&0x7E) >> 1
}

// ScanH265NALUnits walks an Annex B access unit, classifying each NAL unit
// by type and extracting SPS/PPS/VPS RBSP payloads (emulation-prevention
// stripped).
func ScanH265NALUnits(data []byte) H265AccessUnit {
	var au H265AccessUnit
	o := 0
	for {
		next := FindAnnexBStartCode(data, o)
		if next < 0 || next >= len(data) {
			break
		}
		nalType := h265NALType(data[next])

		if nalType >= nalBLAWLP && nalType <= nalCRANUT {
			au.KeyFrame = true
		}

		nalStart := next + 1
		switch nalType {
		case nalPPSNUT, nalVPSNUT, nalSPSNUT:
			if len(data)-nalStart <= 1 {
				o = next + 1
				continue
			}
			nalEnd := FindAnnexBStartCode(data, nalStart)
			var raw []byte
			if nalEnd < 0 {
				raw = data[nalStart:]
			} else {
				raw = data[nalStart : nalEnd-3]
			}
			rbsp := tspacket.RemoveEmulationPrevention(raw)
			switch nalType {
			case nalPPSNUT:
				au.PPS = rbsp
			case nalVPSNUT:
				au.VPS = rbsp
			case nalSPSNUT:
				au.SPS = rbsp
			}
		}
		o = next + 1
	}
	return au
}

// ParseH265SPS decodes an emulation-prevention-free H.265 SPS RBSP.
func ParseH265SPS(rbsp []byte) (H264SPS, error) {
	var sps H264SPS
	bs := tspacket.NewBitReader(rbsp)

	bs.ReadBits(8 + 4) // NAL header, sps_video_parameter_set_id
	maxSubLayersMinus1U, _ := bs.ReadBits(3)
	maxSubLayersMinus1 := int(maxSubLayersMinus1U)
	bs.ReadBits(1) // sps_temporal_id_nesting_flag

	bs.ReadBits(88) // profile_tier_level general profile/compat/constraint fields
	bs.ReadBits(8)  // general_level_idc

	toSkip := 0
	for i := 0; i < maxSubLayersMinus1; i++ {
		profilePresent, _ := bs.ReadBits(1)
		if profilePresent == 1 {
			toSkip += 89
		}
		levelPresent, _ := bs.ReadBits(1)
		if levelPresent == 1 {
			toSkip += 8
		}
	}
	bs.ReadBits(toSkip)
	if maxSubLayersMinus1 > 0 {
		bs.ReadBits(2 * (8 - maxSubLayersMinus1))
	}

	bs.ReadUE() // sps_seq_parameter_set_id
	chromaFormatIdcU, _ := bs.ReadUE()
	chromaFormatIdc := int(chromaFormatIdcU)
	if chromaFormatIdc == 3 {
		bs.ReadBits(1) // separate_colour_plane_flag
	}

	widthU, _ := bs.ReadUE()
	heightU, _ := bs.ReadUE()
	width, height := int(widthU), int(heightU)

	confWin, _ := bs.ReadBits(1)
	if confWin == 1 {
		leftU, _ := bs.ReadUE()
		rightU, _ := bs.ReadUE()
		topU, _ := bs.ReadUE()
		bottomU, _ := bs.ReadUE()

		subWidthC, subHeightC := 1, 1
		if chromaFormatIdc == 1 || chromaFormatIdc == 2 {
			subWidthC = 2
		}
		if chromaFormatIdc == 1 {
			subHeightC = 2
		}
		width -= subWidthC * int(leftU+rightU)
		height -= subHeightC * int(topU+bottomU)
	}

	bs.ReadUE() // bit_depth_luma_minus8
	bs.ReadUE() // bit_depth_chroma_minus8
	log2MaxPicOrderCntLsbMinus4U, _ := bs.ReadUE()
	log2MaxPicOrderCntLsbMinus4 := int(log2MaxPicOrderCntLsbMinus4U)

	startSubLayer := maxSubLayersMinus1
	subLayerOrderingInfoPresent, _ := bs.ReadBits(1)
	if subLayerOrderingInfoPresent == 1 {
		startSubLayer = 0
	}
	for i := startSubLayer; i <= maxSubLayersMinus1; i++ {
		bs.ReadUE() // sps_max_dec_pic_buffering_minus1
		bs.ReadUE() // sps_max_num_reorder_pics
		bs.ReadUE() // sps_max_latency_increase_plus1
	}

	bs.ReadUE() // log2_min_luma_coding_block_size_minus3
	bs.ReadUE() // log2_diff_max_min_luma_coding_block_size
	bs.ReadUE() // log2_min_luma_transform_block_size_minus2
	bs.ReadUE() // log2_diff_max_min_luma_transform_block_size
	bs.ReadUE() // max_transform_hierarchy_depth_inter
	bs.ReadUE() // max_transform_hierarchy_depth_intra

	scalingListEnabled, _ := bs.ReadBits(1)
	if scalingListEnabled == 1 {
		scalingListDataPresent, _ := bs.ReadBits(1)
		if scalingListDataPresent == 1 {
			skipH265ScalingList(bs)
		}
	}

	bs.ReadBits(2) // amp_enabled_flag, sample_adaptive_offset_enabled_flag

	pcmEnabled, _ := bs.ReadBits(1)
	if pcmEnabled == 1 {
		bs.ReadBits(8) // pcm bit depths
		bs.ReadUE()    // log2_min_pcm_luma_coding_block_size_minus3
		bs.ReadUE()    // log2_diff_max_min_pcm_luma_coding_block_size
		bs.ReadBits(1) // pcm_loop_filter_disabled_flag
	}

	skipH265ShortTermRefPicSets(bs)

	longTermRefPicsPresent, _ := bs.ReadBits(1)
	if longTermRefPicsPresent == 1 {
		numLongTermU, _ := bs.ReadUE()
		lsbLen := log2MaxPicOrderCntLsbMinus4 + 4
		for i := uint(0); i < numLongTermU; i++ {
			bs.ReadBits(lsbLen + 1) // lt_ref_pic_poc_lsb_sps + used_by_curr_pic_lt_sps_flag
		}
	}

	bs.ReadBits(2) // sps_temporal_mvp_enabled_flag, strong_intra_smoothing_enabled_flag

	sps.Width = width
	sps.Height = height
	sps.PixelAspect = PixelAspect{1, 1}

	vuiPresent, _ := bs.ReadBits(1)
	if vuiPresent == 1 {
		aspectPresent, _ := bs.ReadBits(1)
		if aspectPresent == 1 {
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

func skipH265ScalingList(bs *tspacket.BitReader) {
	for sizeID := 0; sizeID < 4; sizeID++ {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < 6; matrixID += step {
			predMode, _ := bs.ReadBit()
			if predMode == 0 {
				bs.ReadUE() // scaling_list_pred_matrix_id_delta
				continue
			}
			coefNum := 1 << uint(4+sizeID*2)
			if coefNum > 64 {
				coefNum = 64
			}
			if sizeID > 1 {
				bs.ReadSE() // scaling_list_dc_coef_minus8
			}
			for i := 0; i < coefNum; i++ {
				bs.ReadSE() // scaling_list_delta_coef
			}
		}
	}
}

func skipH265ShortTermRefPicSets(bs *tspacket.BitReader) {
	numSetsU, _ := bs.ReadUE()
	numSets := int(numSetsU)
	previousNumDeltaPocs := 0

	for idx := 0; idx < numSets; idx++ {
		interPredFlag := false
		if idx != 0 {
			b, _ := bs.ReadBit()
			interPredFlag = b == 1
		}

		if interPredFlag {
			bs.ReadBits(1) // delta_rps_sign
			bs.ReadUE()    // abs_delta_rps_minus1
			for j := 0; j <= previousNumDeltaPocs; j++ {
				used, _ := bs.ReadBit()
				if used == 1 {
					bs.ReadBits(1) // use_delta_flag
				}
			}
			continue
		}

		numNegU, _ := bs.ReadUE()
		numPosU, _ := bs.ReadUE()
		numNeg, numPos := int(numNegU), int(numPosU)
		previousNumDeltaPocs = numNeg + numPos

		for i := 0; i < numNeg; i++ {
			bs.ReadUE()    // delta_poc_s0_minus1
			bs.ReadBits(1) // used_by_curr_pic_s0_flag
		}
		for i := 0; i < numPos; i++ {
			bs.ReadUE()    // delta_poc_s1_minus1
			bs.ReadBits(1) // used_by_curr_pic_s1_flag
		}
	}
}
