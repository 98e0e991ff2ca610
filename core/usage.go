package core

// Usage accumulates model call accounting across one execution phase.
type Usage struct {
	Calls          int      `json:"calls"`
	Tokens         int      `json:"tokens"`
	ResponseTimeMS int64    `json:"response_time_ms"`
	Providers      []string `json:"providers,omitempty"`
}

// Record adds one model call to the tally.
func (u *Usage) Record(provider string, tokens int, responseTimeMS int64) {
	u.Calls++
	u.Tokens += tokens
	u.ResponseTimeMS += responseTimeMS
	for _, p := range u.Providers {
		if p == provider {
			return
		}
	}
	u.Providers = append(u.Providers, provider)
}

// Merge folds another tally into this one.
func (u *Usage) Merge(other Usage) {
	u.Calls += other.Calls
	u.Tokens += other.Tokens
	u.ResponseTimeMS += other.ResponseTimeMS
	for _, p := range other.Providers {
		known := false
		for _, existing := range u.Providers {
			if existing == p {
				known = true
				break
			}
		}
		if !known {
			u.Providers = append(u.Providers, p)
		}
	}
}

// AvgResponseTimeMS returns the mean model response time, or 0 without calls.
func (u Usage) AvgResponseTimeMS() int64 {
	if u.Calls == 0 {
		return 0
	}
	return u.ResponseTimeMS / int64(u.Calls)
}
