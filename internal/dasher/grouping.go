package dasher

// SameAdaptationSet implements spec §4.3's same_adaptation_set(a, b)
// predicate: true iff a and b may share an Adaptation Set.
func SameAdaptationSet(a, b *Stream, opts Options) bool {
	if a.Type != b.Type {
		return false
	}
	if !sameRoleSet(a.Roles, b.Roles) {
		return false
	}
	if !sameDescriptors(a.ASDesc, b.ASDesc) {
		return false
	}
	if opts.Align && a.DashDur != b.DashDur {
		return false
	}
	if a.SRD != b.SRD {
		return false
	}
	if a.ViewID != b.ViewID {
		return false
	}
	if a.Language != b.Language {
		return false
	}
	if a.Channels != b.Channels {
		return false
	}

	switch a.Type {
	case StreamTypeVideo:
		if !opts.NoSAR && !samePixelAspect(a, b) {
			return false
		}
	default:
		if !opts.MixCodecs && a.CodecID != b.CodecID {
			return false
		}
	}

	if a.DepID != "" {
		if !containsString(b.ComplementaryReps, a.RepID) {
			return false
		}
	}
	if b.DepID != "" {
		if !containsString(a.ComplementaryReps, b.RepID) {
			return false
		}
	}

	return true
}

// sameRoleSet treats "main" as the implicit default role, per spec §4.3.
func sameRoleSet(a, b []string) bool {
	normalize := func(roles []string) []string {
		if len(roles) == 0 {
			return []string{"main"}
		}
		return roles
	}
	na, nb := normalize(a), normalize(b)
	if len(na) != len(nb) {
		return false
	}
	seen := make(map[string]int, len(na))
	for _, r := range na {
		seen[r]++
	}
	for _, r := range nb {
		seen[r]--
	}
	for _, c := range seen {
		if c != 0 {
			return false
		}
	}
	return true
}

// samePixelAspect compares w·sar.num : h·sar.den across two video
// streams, per spec §4.3.
func samePixelAspect(a, b *Stream) bool {
	san, sad := a.SARNum, a.SARDen
	if san == 0 {
		san = 1
	}
	if sad == 0 {
		sad = 1
	}
	sbn, sbd := b.SARNum, b.SARDen
	if sbn == 0 {
		sbn = 1
	}
	if sbd == 0 {
		sbd = 1
	}
	lhsNum := int64(a.Width) * int64(san)
	lhsDen := int64(a.Height) * int64(sad)
	rhsNum := int64(b.Width) * int64(sbn)
	rhsDen := int64(b.Height) * int64(sbd)
	return lhsNum*rhsDen == rhsNum*lhsDen
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// GroupIntoAdaptationSets partitions the non-muxed streams of a Period
// into Adaptation Sets, then attaches every muxed stream to its base's
// set (spec §4.3: "Muxed streams always attach to their base's AS").
func GroupIntoAdaptationSets(p *Period, opts Options) {
	p.AdaptationSets = p.AdaptationSets[:0]

	baseStreams := make([]*Stream, 0, len(p.Streams))
	muxed := make([]*Stream, 0)
	for _, s := range p.Streams {
		if s.MuxedBase != "" {
			muxed = append(muxed, s)
		} else {
			baseStreams = append(baseStreams, s)
		}
	}

	assigned := make(map[*Stream]*AdaptationSet)

	for _, s := range baseStreams {
		if assigned[s] != nil {
			continue
		}
		set := &AdaptationSet{
			MaxWidth:  s.Width,
			MaxHeight: s.Height,
			Align:     opts.Align,
			Language:  s.Language,
			Roles:     s.Roles,
			CondDesc:  s.ASDesc,
			AnyDesc:   s.ASAnyDesc,
		}
		set.ownerStreamIndex = indexOfStream(p.Streams, s)
		assigned[s] = set

		for _, other := range baseStreams {
			if other == s || assigned[other] != nil {
				continue
			}
			if SameAdaptationSet(s, other, opts) {
				assigned[other] = set
				if other.Width > set.MaxWidth {
					set.MaxWidth = other.Width
				}
				if other.Height > set.MaxHeight {
					set.MaxHeight = other.Height
				}
			}
		}

		p.AdaptationSets = append(p.AdaptationSets, set)
	}

	byBaseID := make(map[string]*AdaptationSet, len(baseStreams))
	for _, s := range baseStreams {
		if set, ok := assigned[s]; ok {
			byBaseID[idOrRepID(s)] = set
		}
	}
	for _, ms := range muxed {
		if set, ok := byBaseID[ms.MuxedBase]; ok {
			assigned[ms] = set
		}
	}

	applyAssignment(p, assigned, opts)
}

func idOrRepID(s *Stream) string {
	if s.RepID != "" {
		return s.RepID
	}
	return s.ID
}

func indexOfStream(streams []*Stream, target *Stream) int {
	for i, s := range streams {
		if s == target {
			return i
		}
	}
	return -1
}

// applyAssignment writes the computed AdaptationSet indices back onto
// each Stream and evaluates bitstream-switching eligibility per set,
// per spec §4.3's "Bitstream-switching check".
func applyAssignment(p *Period, assigned map[*Stream]*AdaptationSet, opts Options) {
	setIndex := make(map[*AdaptationSet]int, len(p.AdaptationSets))
	for i, set := range p.AdaptationSets {
		setIndex[set] = i
	}

	membersOf := make(map[*AdaptationSet][]*Stream)
	for _, s := range p.Streams {
		set, ok := assigned[s]
		if !ok {
			continue
		}
		s.asIndex = setIndex[set]
		membersOf[set] = append(membersOf[set], s)
	}

	for set, members := range membersOf {
		evaluateBitstreamSwitching(set, members, opts)
	}
}

// evaluateBitstreamSwitching decides set.BitstreamSwitching and, when
// enabled, stamps ForceTimescale on every member Stream whose timescale
// differs from the reference, so the scheduler rescales only the
// Representations that actually need it (spec §3.2/§4.3).
func evaluateBitstreamSwitching(set *AdaptationSet, members []*Stream, opts Options) {
	if opts.SwitchMode == SwitchOff || len(members) < 2 {
		return
	}

	var base *Stream
	for _, m := range members {
		if m.MuxedBase == "" {
			base = m
			break
		}
	}
	if base == nil {
		return
	}

	allInband := true
	allMatchBase := true
	for _, m := range members {
		if m == base {
			continue
		}
		if !(m.CodecID == base.CodecID && m.DecoderConfigCRC == base.DecoderConfigCRC) {
			allMatchBase = false
		}
		if !m.InbandParams {
			allInband = false
		}
	}

	inbandMode := opts.SwitchMode == SwitchInband || opts.SwitchMode == SwitchMulti
	enable := allMatchBase || (inbandMode && allInband)
	if !enable {
		return
	}

	set.BitstreamSwitching = true
	ref := base.Timescale
	for _, m := range members {
		if m.Timescale != ref && m.Timescale != 0 {
			m.ForceTimescale = ref
		}
	}
}
