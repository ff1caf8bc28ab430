package realtime

const documentTopicPrefix = "document:"

// DocumentTopic is the topic every connection editing userID's document
// subscribes to.
func DocumentTopic(userID string) string {
	return documentTopicPrefix + userID
}
