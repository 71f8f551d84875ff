package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Chicago")
	if err != nil {
		panic(err)
	}
}

// force timezone to be Madison's since season boundaries are computed
// from <time.Time>.Year()/Month() and a host in another timezone would
// flip them a few hours early or late
func Now() time.Time {
	return time.Now().In(Location)
}
