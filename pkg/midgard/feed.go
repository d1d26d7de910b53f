package midgard

import "context"

// Feed couples a transport client with the network's parser so callers get
// normalized pages in one call.
type Feed struct {
	client *Client
	parser Parser
}

func NewFeed(client *Client, parser Parser) *Feed {
	return &Feed{client: client, parser: parser}
}

// FetchPage fetches and parses one page of the remote feed at the given
// offset.
func (f *Feed) FetchPage(ctx context.Context, offset, limit int) (ParseResult, error) {
	raw, err := f.client.FetchPage(ctx, offset, limit)
	if err != nil {
		return ParseResult{}, err
	}
	return f.parser.Parse(raw)
}
