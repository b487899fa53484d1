package models

// DistributionRow is one price bucket of a city's market distribution,
// holding the per property type counts that fall into it.
type DistributionRow struct {
	RangeFrom float64             `json:"rangeFrom"`
	Values    map[string]*float64 `json:"values"`
}

// legacySemiDetached is the key older distribution uploads used for
// semi-detached counts.
const legacySemiDetached = "semi"

// Value returns the count stored for the property type, or nil.
func (r DistributionRow) Value(propertyType string) *float64 {
	if r.Values == nil {
		return nil
	}
	v := r.Values[propertyType]
	if v == nil && propertyType == "semi-detached" {
		v = r.Values[legacySemiDetached]
	}
	return v
}

// Bucket is a distribution bucket projected onto one property type.
type Bucket struct {
	RangeFrom float64  `json:"rangeFrom"`
	Value     *float64 `json:"value"`
	Percent   *float64 `json:"percent"`
}
