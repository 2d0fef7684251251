// Package calendar reads calendars and events from the Google Calendar API.
//
// The client is read-only. It lists the calendars of the authenticated
// account and expands recurring events into single instances within a time
// range, copying each one into a model.RawEvent.
//
// Example usage:
//
//	httpClient, err := google.HTTPClient(ctx, provider, "default")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := calendar.NewClient(ctx, option.WithHTTPClient(httpClient))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	events, err := client.ListEvents(ctx, "primary", rng)
package calendar
