package search

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type person struct {
	ID     string
	Name   string
	Tags   []string
	Status string
}

func newPeople() *Index[person] {
	ix := New(Accessors[person]{
		Key:    func(p person) string { return p.ID },
		Fields: func(p person) []string { return append([]string{p.ID, p.Name}, p.Tags...) },
		Status: func(p person) string { return p.Status },
	})
	ix.Replace([]person{
		{ID: "P001", Name: "John Smith", Status: "Active"},
		{ID: "P002", Name: "Mary Johnson", Status: "Active"},
		{ID: "P003", Name: "Robert Davis", Status: "Inactive"},
		{ID: "D001", Name: "Dr. Sarah Johnson", Tags: []string{"Cardiology"}, Status: "Available"},
	})
	return ix
}

func ids(seq func(func(person) bool)) []string {
	var out []string
	for p := range seq {
		out = append(out, p.ID)
	}
	return out
}

func TestSearchSubstringAnyField(t *testing.T) {
	ix := newPeople()

	assert.Equal(t, []string{"P002", "D001"}, ids(ix.Search("johnson", All())))
	assert.Equal(t, []string{"P003"}, ids(ix.Search("p003", All())))
	assert.Equal(t, []string{"D001"}, ids(ix.Search("CARDIO", All())))
	assert.Empty(t, ids(ix.Search("neurology", All())))
}

func TestSearchEmptyTermIsFilterOnly(t *testing.T) {
	ix := newPeople()

	assert.Equal(t, []string{"P001", "P002", "P003", "D001"}, ids(ix.Search("", All())))
	assert.Equal(t, []string{"P001", "P002"}, ids(ix.Search("  ", Equals("active"))))
	assert.Equal(t, []string{"P003"}, ids(ix.Search("", Equals("Inactive"))))
}

func TestSearchFilterAppliesAfterMatch(t *testing.T) {
	ix := newPeople()

	assert.Equal(t, []string{"P002"}, ids(ix.Search("johnson", Equals("Active"))))
	assert.Empty(t, ids(ix.Search("robert", Equals("Active"))))
}

func TestSearchCaseFolding(t *testing.T) {
	ix := New(Accessors[person]{
		Key:    func(p person) string { return p.ID },
		Fields: func(p person) []string { return []string{p.Name} },
	})
	ix.Upsert(person{ID: "1", Name: "Jürgen Straße"})

	assert.Equal(t, []string{"1"}, ids(ix.Search("STRASSE", All())))
	assert.Equal(t, []string{"1"}, ids(ix.Search("jÜrgen", All())))
}

func TestUpsertKeepsPosition(t *testing.T) {
	ix := newPeople()
	ix.Upsert(person{ID: "P001", Name: "John Smythe", Status: "Inactive"})
	ix.Upsert(person{ID: "P004", Name: "Ann Lee", Status: "Active"})

	assert.Equal(t, 5, ix.Len())
	assert.Equal(t, []string{"P001", "P002", "P003", "D001", "P004"}, ids(ix.Search("", All())))
	assert.Equal(t, []string{"P001", "P003"}, ids(ix.Search("", Equals("inactive"))))
	assert.Empty(t, ids(ix.Search("smith", All())))
}

func TestAddRejectsDuplicateKey(t *testing.T) {
	ix := newPeople()

	assert.True(t, ix.Add(person{ID: "P004", Name: "Linda Park", Status: "Active"}))
	assert.False(t, ix.Add(person{ID: "P001", Name: "Someone Else", Status: "Inactive"}))
	assert.Equal(t, 5, ix.Len())
	assert.Equal(t, []string{"P001"}, ids(ix.Search("smith", All())))
	assert.Equal(t, []string{"P004"}, ids(ix.Search("park", Equals("active"))))
}

func TestSearchIsLazy(t *testing.T) {
	ix := newPeople()

	var seen []string
	for p := range ix.Search("", All()) {
		seen = append(seen, p.ID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"P001", "P002"}, seen)
}

func TestParseStatusFilter(t *testing.T) {
	assert.True(t, ParseStatusFilter("").Match("anything"))
	assert.True(t, ParseStatusFilter("ALL").Match("Inactive"))

	f := ParseStatusFilter("Active")
	assert.True(t, f.Match("active"))
	assert.False(t, f.Match("Inactive"))
	assert.Equal(t, "Active", f.String())
}

func TestConcurrentSearchAndUpsert(t *testing.T) {
	ix := newPeople()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ix.Upsert(person{ID: "P001", Name: "John Smith", Status: "Active"})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got := slices.Collect(ix.Search("john", All()))
				assert.Len(t, got, 3)
			}
		}()
	}
	wg.Wait()
}
