// Package seed loads the versioned reference catalogs: the medication
// knowledge base, lifestyle advice and the fallback hospital list.
package seed

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
	"gopkg.in/yaml.v3"
)

const (
	medicationsFile = "medications.yaml"
	lifestyleFile   = "lifestyle.yaml"
	hospitalsFile   = "hospitals.yaml"
)

//go:embed data/*.yaml
var embedded embed.FS

type medicationsDoc struct {
	Version     int                   `yaml:"version"`
	Medications []entities.Medication `yaml:"medications"`
}

type lifestyleDoc struct {
	Version int                                   `yaml:"version"`
	Groups  map[string][]entities.LifestyleAdvice `yaml:"groups"`
}

type hospitalsDoc struct {
	Version   int                 `yaml:"version"`
	Hospitals []entities.Facility `yaml:"hospitals"`
}

type snapshot struct {
	medications []entities.Medication
	lifestyle   []entities.LifestyleAdvice
	hospitals   []entities.Facility
}

// Catalog holds the current catalogs and swaps them atomically on reload
type Catalog struct {
	mu   sync.RWMutex
	snap snapshot
	fsys fs.FS
	dir  string
}

var _ repositories.CatalogRepository = (*Catalog)(nil)

// LoadEmbedded loads the catalogs compiled into the binary
func LoadEmbedded() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return load(sub, "")
}

// LoadDir loads catalogs from dir. Files missing from dir fall back to the
// embedded copy.
func LoadDir(dir string) (*Catalog, error) {
	return load(os.DirFS(dir), dir)
}

// Load picks LoadDir when dir is set and LoadEmbedded otherwise
func Load(dir string) (*Catalog, error) {
	if dir == "" {
		return LoadEmbedded()
	}
	return LoadDir(dir)
}

func load(fsys fs.FS, dir string) (*Catalog, error) {
	c := &Catalog{fsys: fsys, dir: dir}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads every catalog file. On error the previous catalogs stay in place.
func (c *Catalog) Reload() error {
	snap, err := readSnapshot(c.fsys)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	log.Info().
		Str("dir", c.dir).
		Int("medications", len(snap.medications)).
		Int("lifestyle", len(snap.lifestyle)).
		Int("hospitals", len(snap.hospitals)).
		Msg("Seed catalogs loaded")
	return nil
}

// Dir returns the override directory, empty for the embedded catalogs
func (c *Catalog) Dir() string {
	return c.dir
}

// Medications returns a copy of the medication knowledge base in file order
func (c *Catalog) Medications() []entities.Medication {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entities.Medication, len(c.snap.medications))
	for i, m := range c.snap.medications {
		out[i] = m.Clone()
	}
	return out
}

// Lifestyle returns a copy of the lifestyle advice table
func (c *Catalog) Lifestyle() []entities.LifestyleAdvice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entities.LifestyleAdvice, len(c.snap.lifestyle))
	for i, a := range c.snap.lifestyle {
		a.Categories = append([]string(nil), a.Categories...)
		out[i] = a
	}
	return out
}

// Hospitals returns a copy of the deduplicated reference hospitals
func (c *Catalog) Hospitals() []entities.Facility {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entities.Facility, len(c.snap.hospitals))
	for i, h := range c.snap.hospitals {
		out[i] = h.Clone()
	}
	return out
}

// MedicationByID looks up a knowledge-base entry
func (c *Catalog) MedicationByID(id string) (entities.Medication, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.snap.medications {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return entities.Medication{}, false
}

func readSnapshot(fsys fs.FS) (snapshot, error) {
	var snap snapshot

	var meds medicationsDoc
	if err := decode(fsys, medicationsFile, &meds); err != nil {
		return snap, err
	}
	for i := range meds.Medications {
		if meds.Medications[i].Source == "" {
			meds.Medications[i].Source = entities.MedicationSourceKnowledgeGraph
		}
	}
	snap.medications = dedupMedications(meds.Medications)

	var life lifestyleDoc
	if err := decode(fsys, lifestyleFile, &life); err != nil {
		return snap, err
	}
	snap.lifestyle = flattenLifestyle(life.Groups)

	var hosp hospitalsDoc
	if err := decode(fsys, hospitalsFile, &hosp); err != nil {
		return snap, err
	}
	for i := range hosp.Hospitals {
		hosp.Hospitals[i].Source = entities.FacilitySourceSeed
	}
	snap.hospitals = DedupFacilities(hosp.Hospitals)

	return snap, nil
}

func decode(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			data, err = fs.ReadFile(embedded, "data/"+name)
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// DedupFacilities keeps the first facility for every ID and logs the rest
func DedupFacilities(in []entities.Facility) []entities.Facility {
	seen := make(map[string]struct{}, len(in))
	out := make([]entities.Facility, 0, len(in))
	for _, f := range in {
		if _, ok := seen[f.ID]; ok {
			log.Warn().Str("id", f.ID).Str("name", f.Name).Msg("Dropping duplicate seed hospital")
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}

func dedupMedications(in []entities.Medication) []entities.Medication {
	seen := make(map[string]struct{}, len(in))
	out := make([]entities.Medication, 0, len(in))
	for _, m := range in {
		if _, ok := seen[m.ID]; ok {
			log.Warn().Str("id", m.ID).Msg("Dropping duplicate seed medication")
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Lifestyle groups are emitted in a fixed order so advice output is stable
var lifestyleGroupOrder = []string{"pain", "respiratory", "digestive", "general"}

func flattenLifestyle(groups map[string][]entities.LifestyleAdvice) []entities.LifestyleAdvice {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	rank := func(name string) int {
		for i, g := range lifestyleGroupOrder {
			if g == name {
				return i
			}
		}
		return len(lifestyleGroupOrder)
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	var out []entities.LifestyleAdvice
	for _, name := range names {
		out = append(out, groups[name]...)
	}
	return out
}
