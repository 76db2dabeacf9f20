package notify

import (
	"fmt"
	"math"
	"time"
)

// OfferMessage is the SMS inviting an agent to accept a service request.
func OfferMessage(distanceMiles float64, directDistance bool, travel *time.Duration, link string, ttl time.Duration) string {
	prefix := fmt.Sprintf("You have a nearby service request (%.2f miles away)", distanceMiles)
	if directDistance {
		prefix = fmt.Sprintf("You have a service request (approx. %.2f miles away as the crow flies)", distanceMiles)
	}
	travelInfo := ""
	if travel != nil && *travel > 0 {
		travelInfo = ". Estimated travel time: " + FormatTravelTime(*travel)
	}
	minutes := int(math.Round(ttl.Minutes()))
	return fmt.Sprintf("%s%s. Click the link to accept: %s. Link expires in %d minutes.", prefix, travelInfo, link, minutes)
}

// FormatTravelTime renders "H hour(s) M min" or "M min".
func FormatTravelTime(d time.Duration) string {
	secs := int(d / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	if hours > 0 {
		unit := "hour"
		if hours > 1 {
			unit = "hours"
		}
		return fmt.Sprintf("%d %s %d min", hours, unit, minutes)
	}
	return fmt.Sprintf("%d min", minutes)
}

func AcceptedMessage(serviceID string) string {
	return fmt.Sprintf("You have successfully accepted service #%s.", serviceID)
}

// ScheduledMessage tells the customer when the agent will arrive.
func ScheduledMessage(agentFirstName string, at time.Time) string {
	return fmt.Sprintf("Your service has been scheduled. %s will arrive on %s at %s.",
		agentFirstName, at.Format("01/02/2006"), at.Format("03:04 PM"))
}
