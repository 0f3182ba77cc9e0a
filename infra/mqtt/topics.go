package mqtt

// OfferTopic is where a mechanic's app receives offers.
func OfferTopic(mechanicID string) string {
	return "roadassist/mechanics/" + mechanicID + "/offers"
}

// OfferCancelTopic is where a mechanic learns an outstanding offer is void.
func OfferCancelTopic(mechanicID string) string {
	return "roadassist/mechanics/" + mechanicID + "/offers/cancel"
}

// RiderTopic is where a rider's app receives lifecycle notifications.
func RiderTopic(riderID string) string {
	return "roadassist/riders/" + riderID + "/events"
}

// ReplyTopic is the shared topic on which mechanics publish accept and
// decline replies.
const ReplyTopic = "roadassist/offers/reply"
