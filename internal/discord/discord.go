package discord

type FileMessage struct {
	ChannelID string
	Content   string
	Filename  string
	FileBody  []byte
}

// Client posts finished meeting transcripts to an archive channel.
type Client interface {
	SendChannelMessageWithFile(msg FileMessage) error
}
