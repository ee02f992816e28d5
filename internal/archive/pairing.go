package archive

import (
	"sort"
)

// Entry is one archive date with its Logs and the audio recorded that day.
type Entry struct {
	Date  string   `json:"date"`  // YYYYMMDD
	Log   string   `json:"log"`   // most recent Log of the date, "" if none
	Logs  []string `json:"logs"`  // all Logs of the date, newest first
	Audio string   `json:"audio"` // most recent audio of the date, "" if none
}

// Pair groups Log and audio names by date. Matching is by date only, so a
// Log and an MP3 written a few seconds apart still end up on one entry.
// Entries come back newest date first; names that do not parse are skipped.
func Pair(logNames, audioNames []string) []Entry {
	logsByDate := map[string][]Name{}
	audioByDate := map[string][]Name{}
	for _, f := range logNames {
		if n, err := ParseName(f); err == nil && n.Kind == KindLog {
			logsByDate[n.Date] = append(logsByDate[n.Date], n)
		}
	}
	for _, f := range audioNames {
		if n, err := ParseName(f); err == nil && n.Kind == KindAudio {
			audioByDate[n.Date] = append(audioByDate[n.Date], n)
		}
	}

	dates := make([]string, 0, len(logsByDate)+len(audioByDate))
	for d := range logsByDate {
		dates = append(dates, d)
	}
	for d := range audioByDate {
		if _, ok := logsByDate[d]; !ok {
			dates = append(dates, d)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	entries := make([]Entry, 0, len(dates))
	for _, d := range dates {
		logs := newestFirst(logsByDate[d])
		audio := newestFirst(audioByDate[d])

		e := Entry{Date: d, Logs: make([]string, 0, len(logs))}
		for _, n := range logs {
			e.Logs = append(e.Logs, n.File)
		}
		if len(logs) > 0 {
			e.Log = logs[0].File
		}
		if len(audio) > 0 {
			e.Audio = audio[0].File
		}
		entries = append(entries, e)
	}
	return entries
}

func newestFirst(names []Name) []Name {
	sort.SliceStable(names, func(i, j int) bool {
		if names[i].sortKey() != names[j].sortKey() {
			return names[i].sortKey() > names[j].sortKey()
		}
		return names[i].File > names[j].File
	})
	return names
}
