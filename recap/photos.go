package recap

import (
	"sort"
	"strings"
)

const (
	// DefaultMaxFallback bounds the final-fallback selection count.
	DefaultMaxFallback = 6

	starredBonus    = 0.3
	facesBonus      = 0.2
	sceneMatchBonus = 0.2
)

type SelectOptions struct {
	// MaxFallback bounds how many photos the final fallback may emit (default 6).
	MaxFallback int
}

// SelectionState records what earlier selections consumed. One state belongs to one
// selection run and must not be shared across goroutines.
type SelectionState struct {
	UsedPhotoIDs map[string]struct{}
	UsedDays     map[int]struct{}
}

func NewSelectionState() *SelectionState {
	return &SelectionState{
		UsedPhotoIDs: map[string]struct{}{},
		UsedDays:     map[int]struct{}{},
	}
}

func (s *SelectionState) photoUsed(p PhotoRecord) bool {
	_, ok := s.UsedPhotoIDs[photoKey(p)]
	return ok
}

func (s *SelectionState) dayUsed(day int) bool {
	_, ok := s.UsedDays[day]
	return ok
}

func (s *SelectionState) usePhoto(p PhotoRecord) { s.UsedPhotoIDs[photoKey(p)] = struct{}{} }
func (s *SelectionState) useDay(day int)         { s.UsedDays[day] = struct{}{} }

// photoKey identifies a photo for deduplication. Photos without an id fall back to their
// file reference.
func photoKey(p PhotoRecord) string {
	if p.ID != "" {
		return p.ID
	}
	return "file:" + p.FileReference
}

// PhotoScore ranks a photo as a theme representative.
func PhotoScore(day DayRecord, p PhotoRecord) float64 {
	score := p.QualityScore
	if day.Starred {
		score += starredBonus
	}
	if p.HasFaces {
		score += facesBonus
	}
	return score
}

type candidate struct {
	day   DayRecord
	photo PhotoRecord
	score float64
}

// SelectThemedPhotos binds each topic, in order, to its best unused photo.
//
// Topics with days (from an AI topic set) pick among those days and consume both the photo
// and the day. Other topics pick among days whose keywords contain, or are contained by,
// the topic name and consume only the photo. When neither path yields anything but photos
// exist, the highest-scoring unused photos are emitted with synthesized themes and captions.
//
// state may be nil; a fresh state is used then.
func SelectThemedPhotos(records []DayRecord, topics TopicSet, opts SelectOptions, state *SelectionState) []ThemedPhotoSelection {
	if state == nil {
		state = NewSelectionState()
	}
	if opts.MaxFallback <= 0 {
		opts.MaxFallback = DefaultMaxFallback
	}

	days := uniqueDays(records)
	byDay := make(map[int]DayRecord, len(days))
	for _, d := range days {
		if _, ok := byDay[d.Date.Day()]; !ok {
			byDay[d.Date.Day()] = d
		}
	}

	var out []ThemedPhotoSelection
	for _, topic := range topics.Topics {
		name := strings.TrimSpace(topic.Name)
		if name == "" {
			continue
		}

		var (
			best       candidate
			found      bool
			consumeDay bool
		)
		if topics.Source != TopicSourceKeywords && len(topic.Days) > 0 {
			best, found = bestForDays(byDay, topic.Days, state)
			consumeDay = true
		} else {
			best, found = bestForKeyword(days, name, state)
		}
		if !found {
			continue
		}

		state.usePhoto(best.photo)
		if consumeDay {
			state.useDay(best.day.Date.Day())
		}

		desc := strings.TrimSpace(topic.Description)
		if desc == "" {
			desc = GenericCaption(len(out), best.photo, best.day.Keywords)
		}
		out = append(out, newSelection(name, best, desc))
	}

	if len(out) == 0 {
		out = fallbackSelections(days, opts.MaxFallback, state)
	}
	return out
}

func bestForDays(byDay map[int]DayRecord, topicDays []int, state *SelectionState) (candidate, bool) {
	var (
		best  candidate
		found bool
	)
	for _, dom := range topicDays {
		if state.dayUsed(dom) {
			continue
		}
		day, ok := byDay[dom]
		if !ok {
			continue
		}
		for _, p := range day.Photos {
			if state.photoUsed(p) {
				continue
			}
			if s := PhotoScore(day, p); !found || s > best.score {
				best, found = candidate{day: day, photo: p, score: s}, true
			}
		}
	}
	return best, found
}

func bestForKeyword(days []DayRecord, name string, state *SelectionState) (candidate, bool) {
	name = strings.ToLower(name)
	var (
		best  candidate
		found bool
	)
	for _, day := range days {
		if state.dayUsed(day.Date.Day()) || !keywordMatches(day.Keywords, name) {
			continue
		}
		for _, p := range day.Photos {
			if state.photoUsed(p) {
				continue
			}
			s := PhotoScore(day, p)
			if sceneMatches(p.DetectedScenes, name) {
				s += sceneMatchBonus
			}
			if !found || s > best.score {
				best, found = candidate{day: day, photo: p, score: s}, true
			}
		}
	}
	return best, found
}

func keywordMatches(keywords []string, name string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(kw, name) || strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func sceneMatches(scenes []string, name string) bool {
	for _, s := range scenes {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// fallbackSelections emits the top unused photos of the window. The count is the number of
// days with photos, bounded by max.
func fallbackSelections(days []DayRecord, max int, state *SelectionState) []ThemedPhotoSelection {
	var (
		cands        []candidate
		daysWithPics int
	)
	for _, day := range days {
		if len(day.Photos) > 0 {
			daysWithPics++
		}
		for _, p := range day.Photos {
			if state.photoUsed(p) {
				continue
			}
			cands = append(cands, candidate{day: day, photo: p, score: PhotoScore(day, p)})
		}
	}
	if len(cands) == 0 {
		return nil
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	n := min(daysWithPics, max, len(cands))
	out := make([]ThemedPhotoSelection, 0, n)
	for _, c := range cands {
		if len(out) == n {
			break
		}
		if state.photoUsed(c.photo) {
			continue
		}
		state.usePhoto(c.photo)
		theme := fallbackTheme(c.photo, c.day.Keywords, c.day.Date.Day())
		out = append(out, newSelection(theme, c, GenericCaption(len(out), c.photo, c.day.Keywords)))
	}
	return out
}

func newSelection(theme string, c candidate, desc string) ThemedPhotoSelection {
	return ThemedPhotoSelection{
		Theme:       theme,
		Photos:      []PhotoRecord{c.photo},
		Day:         c.day.Date.Day(),
		DayKeywords: append([]string(nil), c.day.Keywords...),
		Description: desc,
	}
}
