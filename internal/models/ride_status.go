package models

// AllowedTransitions is the ride lifecycle as code. requested -> accepted is
// reachable only through the accept path, which also assigns the rider.
var AllowedTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested:  {RideStatusAccepted},
	RideStatusAccepted:   {RideStatusInProgress, RideStatusCancelled},
	RideStatusInProgress: {RideStatusCompleted, RideStatusCancelled},
}

var AllRideStatuses = []RideStatus{
	RideStatusRequested,
	RideStatusAccepted,
	RideStatusInProgress,
	RideStatusCompleted,
	RideStatusCancelled,
}

func CanTransition(from, to RideStatus) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s RideStatus) IsValid() bool {
	for _, known := range AllRideStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}
