package models

// Folder groups passwords and other folders. Parent references the
// containing folder by id (BaseID for top-level folders).
type Folder struct {
	ID       string `json:"id"`
	Label    string `json:"label"` // encryptable
	Parent   string `json:"parent"`
	Revision string `json:"revision"`
	CSEType  string `json:"cseType"`
	CSEKey   string `json:"cseKey"`
	SSEType  string `json:"sseType"`
	Client   string `json:"client"`
	Hidden   bool   `json:"hidden"`
	Trashed  bool   `json:"trashed"`
	Favorite bool   `json:"favorite"`
	Edited   int64  `json:"edited"`
	Created  int64  `json:"created"`
	Updated  int64  `json:"updated"`
	State    State  `json:"-"`
}

func (f *Folder) EntryKind() Kind       { return KindFolder }
func (f *Folder) EntryID() string       { return f.ID }
func (f *Folder) EntryRevision() string { return f.Revision }
func (f *Folder) EntryState() State     { return f.State }

// Clone returns a deep copy.
func (f *Folder) Clone() *Folder {
	c := *f
	return &c
}

// Password is a stored credential. CustomFields carries a JSON array of
// CustomField objects as a single string so it can be encrypted as one
// field. Folder references the containing folder by id; Tags reference tags
// by id.
type Password struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`        // encryptable
	Username     string   `json:"username"`     // encryptable
	Password     string   `json:"password"`     // encryptable
	URL          string   `json:"url"`          // encryptable
	Notes        string   `json:"notes"`        // encryptable
	CustomFields string   `json:"customFields"` // encryptable
	Hash         string   `json:"hash"`
	Folder       string   `json:"folder"`
	Tags         []string `json:"tags,omitempty"`
	Revision     string   `json:"revision"`
	Status       int      `json:"status"`
	StatusCode   string   `json:"statusCode"`
	CSEType      string   `json:"cseType"`
	CSEKey       string   `json:"cseKey"`
	SSEType      string   `json:"sseType"`
	Client       string   `json:"client"`
	Hidden       bool     `json:"hidden"`
	Trashed      bool     `json:"trashed"`
	Favorite     bool     `json:"favorite"`
	Edited       int64    `json:"edited"`
	Created      int64    `json:"created"`
	Updated      int64    `json:"updated"`
	State        State    `json:"-"`
}

func (p *Password) EntryKind() Kind       { return KindPassword }
func (p *Password) EntryID() string       { return p.ID }
func (p *Password) EntryRevision() string { return p.Revision }
func (p *Password) EntryState() State     { return p.State }

// Clone returns a deep copy.
func (p *Password) Clone() *Password {
	c := *p
	if p.Tags != nil {
		c.Tags = make([]string, len(p.Tags))
		copy(c.Tags, p.Tags)
	}
	return &c
}

// Tag labels passwords for search and grouping.
type Tag struct {
	ID       string `json:"id"`
	Label    string `json:"label"` // encryptable
	Color    string `json:"color"` // encryptable
	Revision string `json:"revision"`
	CSEType  string `json:"cseType"`
	CSEKey   string `json:"cseKey"`
	SSEType  string `json:"sseType"`
	Client   string `json:"client"`
	Hidden   bool   `json:"hidden"`
	Trashed  bool   `json:"trashed"`
	Favorite bool   `json:"favorite"`
	Edited   int64  `json:"edited"`
	Created  int64  `json:"created"`
	Updated  int64  `json:"updated"`
	State    State  `json:"-"`
}

func (t *Tag) EntryKind() Kind       { return KindTag }
func (t *Tag) EntryID() string       { return t.ID }
func (t *Tag) EntryRevision() string { return t.Revision }
func (t *Tag) EntryState() State     { return t.State }

// Clone returns a deep copy.
func (t *Tag) Clone() *Tag {
	c := *t
	return &c
}
