package document

import "time"

// Clip is a media item under description.
type Clip struct {
	ID             string     `json:"_id" validate:"required"`
	Type           string     `json:"type" validate:"eq=Clip"`
	Title          string     `json:"title" validate:"required"`
	Label          string     `json:"label,omitempty"`
	Subtitle       string     `json:"subtitle,omitempty"`
	URL            string     `json:"url" validate:"required"`
	EffectiveID    string     `json:"effectiveId,omitempty"`
	Platform       string     `json:"platform" validate:"required"`
	Collections    []string   `json:"collections" validate:"dive,required"`
	Language       []string   `json:"language" validate:"dive,required"`
	ClipType       []string   `json:"clipType" validate:"dive,required"`
	FileType       string     `json:"fileType" validate:"oneof=a v"`
	Duration       int        `json:"duration" validate:"gte=0"`
	Shelfmark      string     `json:"shelfmark,omitempty"`
	RecordingDate  string     `json:"recordingDate,omitempty"`
	BroadcastDates []string   `json:"broadcastDates,omitempty"`
	Station        []string   `json:"station,omitempty"`
	ClipStatus     []string   `json:"clipStatus,omitempty"`
	OffsetTimecode *int       `json:"offsetTimecode,omitempty" validate:"omitempty,gte=0"`
	Description    string     `json:"description"`
	UpdatedAny     *time.Time `json:"updatedAny,omitempty"`
	UpdatedAnyBy   string     `json:"updatedAnyBy,omitempty"`
	Meta
}

func (c *Clip) DocumentID() string { return c.ID }
func (c *Clip) Kind() Kind         { return KindClip }
func (c *Clip) ClipID() string     { return c.ID }

// Inherit keeps provenance and the child-activity marker.
func (c *Clip) Inherit(stored Document) {
	prev, ok := stored.(*Clip)
	if !ok {
		return
	}
	c.Meta = prev.Meta
	c.UpdatedAny = prev.UpdatedAny
	c.UpdatedAnyBy = prev.UpdatedAnyBy
}

// Touch records activity on the clip or one of its children.
func (c *Clip) Touch(at time.Time, by string) {
	c.UpdatedAny = &at
	c.UpdatedAnyBy = by
}

// Entity is a referenceable thing: person, platform, collection, topic, ...
type Entity struct {
	ID             string            `json:"_id" validate:"required"`
	Type           string            `json:"type" validate:"entitytype"`
	Label          string            `json:"label" validate:"required"`
	Description    string            `json:"description"`
	AuthorityURIs  []string          `json:"authorityURIs,omitempty" validate:"dive,required"`
	AdditionalTags []string          `json:"additionalTags,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	// AnalysisCategories is only set on topics.
	AnalysisCategories []string `json:"analysisCategories,omitempty" validate:"omitempty,dive,analysiscat"`
	UsageCount         int      `json:"usageCount"`
	Meta
}

func (e *Entity) DocumentID() string { return e.ID }
func (e *Entity) Kind() Kind         { return KindEntity }
func (e *Entity) ClipID() string     { return "" }

// Inherit keeps provenance and the derived usage count.
func (e *Entity) Inherit(stored Document) {
	prev, ok := stored.(*Entity)
	if !ok {
		return
	}
	e.Meta = prev.Meta
	e.UsageCount = prev.UsageCount
}

// Annotation is a statement about a clip, optionally scoped to an element,
// layer or segment.
type Annotation struct {
	ID             string   `json:"_id" validate:"required"`
	Type           string   `json:"type" validate:"eq=Annotation"`
	Clip           string   `json:"clip" validate:"required"`
	Element        string   `json:"element,omitempty"`
	Layer          string   `json:"layer,omitempty"`
	Segment        string   `json:"segment,omitempty"`
	Relation       string   `json:"relation" validate:"required"`
	Target         string   `json:"target,omitempty"`
	Role           string   `json:"role,omitempty"`
	Instrument     string   `json:"instrument,omitempty"`
	Quotes         string   `json:"quotes,omitempty"`
	Date           string   `json:"date,omitempty"`
	TimecodeStart  *int     `json:"timecodeStart,omitempty" validate:"omitempty,gte=0"`
	TimecodeEnd    *int     `json:"timecodeEnd,omitempty" validate:"omitempty,gte=0"`
	RefersTo       string   `json:"refersTo,omitempty"`
	ConstitutedBy  []string `json:"constitutedBy,omitempty" validate:"dive,required"`
	Confidence     string   `json:"confidence,omitempty"`
	Attribution    string   `json:"attribution,omitempty"`
	Comment        string   `json:"comment,omitempty"`
	Interpretative bool     `json:"interpretative,omitempty"`
	Meta
}

func (a *Annotation) DocumentID() string { return a.ID }
func (a *Annotation) Kind() Kind         { return KindAnnotation }
func (a *Annotation) ClipID() string     { return a.Clip }

// Inherit keeps provenance.
func (a *Annotation) Inherit(stored Document) {
	if prev, ok := stored.(*Annotation); ok {
		a.Meta = prev.Meta
	}
}

// Element is a structural part of a clip (a piece of music, a speech passage).
type Element struct {
	ID          string    `json:"_id" validate:"required"`
	Type        string    `json:"type" validate:"oneof=Music Speech Noise Picture Structure"`
	Clip        string    `json:"clip" validate:"required"`
	Label       string    `json:"label" validate:"required"`
	Description string    `json:"description"`
	Timecodes   Timecodes `json:"timecodes" validate:"timecodes"`
	Meta
}

func (e *Element) DocumentID() string { return e.ID }
func (e *Element) Kind() Kind         { return KindElement }
func (e *Element) ClipID() string     { return e.Clip }

// Inherit keeps provenance.
func (e *Element) Inherit(stored Document) {
	if prev, ok := stored.(*Element); ok {
		e.Meta = prev.Meta
	}
}

// Layer subdivides an element.
type Layer struct {
	ID          string    `json:"_id" validate:"required"`
	Type        string    `json:"type" validate:"oneof=MusicLayer SpeechLayer SoundLayer"`
	Clip        string    `json:"clip" validate:"required"`
	Element     string    `json:"element" validate:"required"`
	Label       string    `json:"label" validate:"required"`
	Description string    `json:"description"`
	Timecodes   Timecodes `json:"timecodes" validate:"timecodes"`
	Meta
}

func (l *Layer) DocumentID() string { return l.ID }
func (l *Layer) Kind() Kind         { return KindLayer }
func (l *Layer) ClipID() string     { return l.Clip }

// Inherit keeps provenance.
func (l *Layer) Inherit(stored Document) {
	if prev, ok := stored.(*Layer); ok {
		l.Meta = prev.Meta
	}
}

// SegmentAnnotation records when an annotation was placed in a segment.
type SegmentAnnotation struct {
	Annotation string    `json:"annotation" validate:"required"`
	AddedAt    time.Time `json:"addedAt"`
	AddedBy    string    `json:"addedBy"`
}

// Segment is a time-bounded section of a clip grouping annotations.
type Segment struct {
	ID          string              `json:"_id" validate:"required"`
	Type        string              `json:"type" validate:"eq=Segment"`
	Clip        string              `json:"clip" validate:"required"`
	Label       string              `json:"label" validate:"required"`
	Description string              `json:"description"`
	Timecodes   Timecodes           `json:"timecodes" validate:"timecodes"`
	Contains    []SegmentAnnotation `json:"segmentContains" validate:"dive"`
	Meta
}

func (s *Segment) DocumentID() string { return s.ID }
func (s *Segment) Kind() Kind         { return KindSegment }
func (s *Segment) ClipID() string     { return s.Clip }

// Inherit keeps provenance and the contained annotation list, which is only
// changed through its own event.
func (s *Segment) Inherit(stored Document) {
	prev, ok := stored.(*Segment)
	if !ok {
		return
	}
	s.Meta = prev.Meta
	s.Contains = prev.Contains
}

// MergeContains replaces the contained annotations with ids, keeping the
// original stamp of annotations that remain and stamping new ones.
func (s *Segment) MergeContains(ids []string, at time.Time, by string) {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	merged := make([]SegmentAnnotation, 0, len(ids))
	present := make(map[string]bool, len(s.Contains))
	for _, entry := range s.Contains {
		if keep[entry.Annotation] && !present[entry.Annotation] {
			merged = append(merged, entry)
			present[entry.Annotation] = true
		}
	}
	for _, id := range ids {
		if present[id] {
			continue
		}
		merged = append(merged, SegmentAnnotation{Annotation: id, AddedAt: at, AddedBy: by})
		present[id] = true
	}
	s.Contains = merged
}

// User holds per-user catalog state. The id is the username.
type User struct {
	ID            string   `json:"_id" validate:"required"`
	Type          string   `json:"type"`
	FavoriteClips []string `json:"favoriteClips"`
	Meta
}

func (u *User) DocumentID() string { return u.ID }
func (u *User) Kind() Kind         { return KindUser }
func (u *User) ClipID() string     { return "" }

// Inherit keeps provenance.
func (u *User) Inherit(stored Document) {
	if prev, ok := stored.(*User); ok {
		u.Meta = prev.Meta
	}
}

// SetFavorite adds or removes clipID with set semantics. It reports whether
// the list changed.
func (u *User) SetFavorite(clipID string, favorite bool) bool {
	idx := -1
	for i, id := range u.FavoriteClips {
		if id == clipID {
			idx = i
			break
		}
	}
	switch {
	case favorite && idx == -1:
		u.FavoriteClips = append(u.FavoriteClips, clipID)
		return true
	case !favorite && idx != -1:
		u.FavoriteClips = append(u.FavoriteClips[:idx], u.FavoriteClips[idx+1:]...)
		return true
	default:
		return false
	}
}
