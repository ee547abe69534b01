package peers

import (
	"io/ioutil"
	"os"
	"path/filepath"
)

const (
	jsonPartyPath = "parties.json"
)

// JSONPartySet persists the party list as a JSON file under a base directory.
type JSONPartySet struct {
	path string
}

// NewJSONPartySet points at <base>/parties.json without touching the
// filesystem.
func NewJSONPartySet(base string) *JSONPartySet {
	path := filepath.Join(base, jsonPartyPath)

	store := &JSONPartySet{
		path: path,
	}

	return store
}

// PartySet loads and parses the party file.
func (j *JSONPartySet) PartySet() (*PartySet, error) {
	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	return NewPartySetFromPartySliceBytes(buf)
}

// Write persists a list of parties to the party file.
func (j *JSONPartySet) Write(parties []*Party) error {
	partySet := NewPartySet(parties)

	b, err := partySet.Marshal()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, b, 0600)
}
