// Package ics reads calendars published as iCalendar feeds.
//
// A feed is a local file or an http(s)/webcal URL. VEVENT components become
// raw events, expanded with their recurrence rules into single instances for
// the requested range; VTODO components become raw reminders. Remote feeds
// are fetched with ETag/Last-Modified revalidation, and a Refresher can keep
// them warm on a cron schedule while serving.
//
// Export writes a set of events back out as an iCalendar document.
package ics
