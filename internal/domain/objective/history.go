package objective

// History is the ordered, append-only sequence of records of one run.
// Index 0 is the pre-training evaluation.
type History []Record

// Append returns h with r appended.
func (h History) Append(r Record) History {
	return append(h, r)
}

// First returns the initial record.
func (h History) First() (Record, error) {
	if len(h) == 0 {
		return Record{}, ErrEmptyHistory
	}
	return h[0], nil
}

// Last returns the most recent record.
func (h History) Last() (Record, error) {
	if len(h) == 0 {
		return Record{}, ErrEmptyHistory
	}
	return h[len(h)-1], nil
}

// Values extracts the monitored series.
func (h History) Values(key string) ([]float64, error) {
	out := make([]float64, len(h))
	for i, r := range h {
		v, err := r.Monitored(key)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
