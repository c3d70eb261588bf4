package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire shape. Layer block maps are keyed "x,z"; a cell is either a bare
// block id (legacy builds) or an explicit {blockId,x,y,z} record. Both are
// accepted on load and normalized; we always write the explicit record.

type buildJSON struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Layers    []layerJSON `json:"layers"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type layerJSON struct {
	ID      string                     `json:"id"`
	Name    string                     `json:"name"`
	Visible bool                       `json:"visible"`
	Blocks  map[string]json.RawMessage `json:"blocks"`
}

func (b *Build) MarshalJSON() ([]byte, error) {
	out := buildJSON{
		ID:        b.ID,
		Name:      b.Name,
		Width:     b.Width,
		Height:    b.Height,
		Layers:    make([]layerJSON, len(b.Layers)),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	for i, l := range b.Layers {
		lj := layerJSON{
			ID:      l.ID,
			Name:    l.Name,
			Visible: l.Visible,
			Blocks:  make(map[string]json.RawMessage, len(l.Blocks)),
		}
		for k, p := range l.Blocks {
			raw, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			lj.Blocks[k.String()] = raw
		}
		out.Layers[i] = lj
	}
	return json.Marshal(out)
}

func (b *Build) UnmarshalJSON(data []byte) error {
	var in buildJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b.ID = in.ID
	b.Name = in.Name
	b.Width = in.Width
	b.Height = in.Height
	b.CreatedAt = in.CreatedAt
	b.UpdatedAt = in.UpdatedAt
	b.Layers = make([]Layer, len(in.Layers))
	for i, lj := range in.Layers {
		l := Layer{
			ID:      lj.ID,
			Name:    lj.Name,
			Visible: lj.Visible,
			Blocks:  make(map[PosKey]Placement, len(lj.Blocks)),
		}
		for ks, raw := range lj.Blocks {
			k, err := ParsePosKey(ks)
			if err != nil {
				return fmt.Errorf("layer %d: %w", i, err)
			}
			p, err := decodeCell(raw)
			if err != nil {
				return fmt.Errorf("layer %d cell %s: %w", i, ks, err)
			}
			l.Blocks[k] = p
		}
		b.Layers[i] = l
	}
	b.Normalize()
	return nil
}

// decodeCell accepts either a bare block id or an explicit placement record.
func decodeCell(raw json.RawMessage) (Placement, error) {
	var id int
	if err := json.Unmarshal(raw, &id); err == nil {
		return Placement{BlockID: id}, nil
	}
	var p Placement
	if err := json.Unmarshal(raw, &p); err != nil {
		return Placement{}, err
	}
	return p, nil
}
