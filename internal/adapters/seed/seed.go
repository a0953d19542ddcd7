// Package seed reads auction setups from YAML files.
//
//	id: mock-2026
//	name: Mock Auction
//	rules:            # optional, overrides the server defaults field by field
//	  purse: 2000000
//	fields:
//	  - {key: role, label: Role, type: text}
//	teams:
//	  - id: north
//	    name: North
//	    retained:
//	      - {item: p1, price: 300000, captain: true}
//	items:
//	  - {id: p1, name: Ada, attributes: {role: keeper}}
package seed

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/auctionroom/config"
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

type file struct {
	ID     string    `yaml:"id"`
	Name   string    `yaml:"name"`
	Rules  yaml.Node `yaml:"rules"`
	Fields []field   `yaml:"fields"`
	Teams  []team    `yaml:"teams"`
	Items  []item    `yaml:"items"`
}

type field struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
	Type  string `yaml:"type"`
}

type team struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Retained []retained `yaml:"retained"`
}

type retained struct {
	Item    string `yaml:"item"`
	Price   int64  `yaml:"price"`
	Captain bool   `yaml:"captain"`
}

type item struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	BasePrice  int64             `yaml:"base_price"`
	Attributes map[string]string `yaml:"attributes"`
}

// LoadFile reads a setup from path. Rules missing from the file keep the
// values in defaults.
func LoadFile(path string, defaults config.AuctionConfig) (domain.Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Setup{}, fmt.Errorf("seed.LoadFile: read %q: %w", path, err)
	}
	setup, err := Decode(bytes.NewReader(data), defaults)
	if err != nil {
		return domain.Setup{}, fmt.Errorf("seed.LoadFile: %s: %w", path, err)
	}
	return setup, nil
}

// Decode parses a setup document.
func Decode(r io.Reader, defaults config.AuctionConfig) (domain.Setup, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return domain.Setup{}, fmt.Errorf("parse YAML: %w", err)
	}

	rules := defaults
	// keep the caller's slice out of reach of the decoder
	rules.Increments = append([]config.IncrementTier(nil), defaults.Increments...)
	if !f.Rules.IsZero() {
		if err := f.Rules.Decode(&rules); err != nil {
			return domain.Setup{}, fmt.Errorf("rules: %w", err)
		}
	}

	setup := domain.Setup{
		ID:     f.ID,
		Name:   f.Name,
		Config: rules.Domain(),
	}
	for _, fd := range f.Fields {
		t := domain.FieldType(fd.Type)
		switch t {
		case "":
			t = domain.FieldText
		case domain.FieldText, domain.FieldNumber, domain.FieldURL:
		default:
			return domain.Setup{}, fmt.Errorf("field %q: unknown type %q", fd.Key, fd.Type)
		}
		label := fd.Label
		if label == "" {
			label = fd.Key
		}
		setup.Fields = append(setup.Fields, domain.FieldDescriptor{Key: fd.Key, Label: label, Type: t})
	}
	for _, it := range f.Items {
		setup.Items = append(setup.Items, domain.Item{
			ID:         it.ID,
			Name:       it.Name,
			BasePrice:  it.BasePrice,
			Attributes: it.Attributes,
		})
	}
	for _, t := range f.Teams {
		ts := domain.TeamSetup{ID: t.ID, Name: t.Name}
		if ts.Name == "" {
			ts.Name = t.ID
		}
		captains := 0
		for _, r := range t.Retained {
			if r.Captain {
				captains++
			}
			ts.Retained = append(ts.Retained, domain.RetainedItem{ItemID: r.Item, Price: r.Price, Captain: r.Captain})
		}
		if captains > 1 {
			return domain.Setup{}, fmt.Errorf("team %q: more than one captain", t.ID)
		}
		setup.Teams = append(setup.Teams, ts)
	}
	return setup, nil
}
