package models

// Fields flattens a validated registration payload into the field map handed
// to the document store. Validation has already confirmed MonthlyEarns
// parses.
func (r *RegisterUserRequest) Fields() map[string]any {
	earns, _ := r.MonthlyEarns.Float64()
	return map[string]any{
		"firstName":        r.FirstName,
		"lastName":         r.LastName,
		"email":            r.Email,
		"phoneCountryCode": r.PhoneCountryCode,
		"telephone":        r.Telephone,
		"idType":           r.IDType,
		"idNumber":         r.IDNumber,
		"department":       r.Department,
		"municipality":     r.Municipality,
		"direction":        r.Direction,
		"monthlyEarns":     earns,
	}
}

// UserFromFields rebuilds a UserRecord from a raw document field map.
// Unknown or mistyped fields are skipped rather than failing the read; the
// store owns the record and legacy documents may predate the schema.
func UserFromFields(fields map[string]any) UserRecord {
	u := UserRecord{
		FirstName:        stringField(fields, "firstName"),
		LastName:         stringField(fields, "lastName"),
		Email:            stringField(fields, "email"),
		PhoneCountryCode: stringField(fields, "phoneCountryCode"),
		Telephone:        stringField(fields, "telephone"),
		IDType:           stringField(fields, "idType"),
		IDNumber:         stringField(fields, "idNumber"),
		Department:       stringField(fields, "department"),
		Municipality:     stringField(fields, "municipality"),
		Direction:        stringField(fields, "direction"),
		SelfieImage:      stringField(fields, FieldSelfieImage),
		DocumentImageURL: StringSliceField(fields, FieldDocumentImageURL),
	}
	switch n := fields["monthlyEarns"].(type) {
	case float64:
		u.MonthlyEarns = n
	case int64:
		u.MonthlyEarns = float64(n)
	}
	return u
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

// StringSliceField reads an ordered URL sequence from a field map,
// preserving element order.
func StringSliceField(fields map[string]any, key string) []string {
	raw, ok := fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
