package models

// Batch is the ordered set of records submitted to one transfer run
type Batch []*FileRecord

// TotalBytes returns the summed size of every record in the batch
func (b Batch) TotalBytes() int64 {
	var total int64
	for _, r := range b {
		total += r.Size
	}
	return total
}

// SelectMissing returns the records whose status is StatusMissing, in order
func SelectMissing(records []*FileRecord) Batch {
	batch := make(Batch, 0, len(records))
	for _, r := range records {
		if r.Status() == StatusMissing {
			batch = append(batch, r)
		}
	}
	return batch
}

// Names returns the file names of the batch in order
func (b Batch) Names() []string {
	names := make([]string, len(b))
	for i, r := range b {
		names[i] = r.Name
	}
	return names
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
