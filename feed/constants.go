package feed

const (
	FlagProbe       = 1
	FlagObservation = 2
	FlagLayout      = 4
)
