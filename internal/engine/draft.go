package engine

import "github.com/ldenis/travel-logbook/internal/domain"

// Draft is the in-progress edit buffer for a trip form. Nothing here
// touches persisted records: expense and media edits accumulate in the
// draft until it is committed through CreateOrUpdateTrip, and an abandoned
// draft costs nothing.
type Draft struct {
	domain.TripInput
}

// NewDraft returns an empty draft with the single blank expense row every
// form starts with.
func NewDraft() *Draft {
	return &Draft{TripInput: domain.TripInput{
		Category: domain.CategoryVacation,
		Expenses: []domain.Expense{{}},
	}}
}

// DraftFromRecord seeds a draft from an existing record for editing.
// Records persisted with no expenses get the blank starter row back.
func DraftFromRecord(rec domain.Record) *Draft {
	expenses := append([]domain.Expense{}, rec.Expenses...)
	if len(expenses) == 0 {
		expenses = []domain.Expense{{}}
	}
	return &Draft{TripInput: domain.TripInput{
		Title:      rec.Title,
		Location:   rec.Location,
		Companions: rec.Companions,
		StartDate:  rec.StartDate,
		EndDate:    rec.EndDate,
		Notes:      rec.Notes,
		Category:   rec.Category,
		Rating:     rec.Rating,
		Weather:    rec.Weather,
		Expenses:   expenses,
		Images:     append([]string{}, rec.Images...),
		Videos:     append([]string{}, rec.Videos...),
	}}
}

// AddExpenseRow appends a blank expense row.
func (d *Draft) AddExpenseRow() {
	d.Expenses = append(d.Expenses, domain.Expense{})
}

// RemoveExpenseRow deletes the row at index i. The last remaining row is
// never removed, and out-of-range indexes are ignored.
func (d *Draft) RemoveExpenseRow(i int) {
	if len(d.Expenses) <= 1 || i < 0 || i >= len(d.Expenses) {
		return
	}
	d.Expenses = append(d.Expenses[:i], d.Expenses[i+1:]...)
}

// UpdateExpenseRow replaces the row at index i. Out-of-range indexes are
// ignored.
func (d *Draft) UpdateExpenseRow(i int, item, cost string) {
	if i < 0 || i >= len(d.Expenses) {
		return
	}
	d.Expenses[i] = domain.Expense{Item: item, Cost: cost}
}

// AddImages appends uploaded image references.
func (d *Draft) AddImages(refs ...string) {
	d.Images = append(d.Images, refs...)
}

// AddVideos appends uploaded video references.
func (d *Draft) AddVideos(refs ...string) {
	d.Videos = append(d.Videos, refs...)
}

// RemoveImageAt deletes the image reference at index i.
func (d *Draft) RemoveImageAt(i int) {
	if i < 0 || i >= len(d.Images) {
		return
	}
	d.Images = append(d.Images[:i], d.Images[i+1:]...)
}

// RemoveVideoAt deletes the video reference at index i.
func (d *Draft) RemoveVideoAt(i int) {
	if i < 0 || i >= len(d.Videos) {
		return
	}
	d.Videos = append(d.Videos[:i], d.Videos[i+1:]...)
}

// Input returns the accumulated form state for committing.
func (d *Draft) Input() domain.TripInput {
	return d.TripInput
}
