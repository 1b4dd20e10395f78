package bot

import "time"

// Command names.
const (
	CmdStart       = "start"
	CmdHelp        = "help"
	CmdSweep       = "sweep"
	CmdSweepApply  = "sweep_apply"
	CmdAddSource   = "addsource"
	CmdSourceDups  = "sourcedups"
	CmdDomains     = "domains"
	CmdSearch      = "search"
	CmdReindex     = "reindex"
	argReindexFull = "full"
)

// Log field names.
const (
	LogFieldUserID   = "user_id"
	LogFieldUsername = "username"
	LogFieldCommand  = "command"
)

const (
	updateTimeoutSeconds = 60
	commandTimeout       = 10 * time.Minute
	searchRows           = 10
	maxSweepDetails      = 20
	maxDomainGroups      = 15
	snippetLength        = 160
	dateFormat           = "2006-01-02"
)

// Reply texts.
const (
	msgUnknownCommand   = "Unknown command. Send /help for the list."
	msgUsageAddSource   = "Usage: <code>/addsource &lt;feed url&gt; [category]</code>"
	msgUsageSourceDups  = "Usage: <code>/sourcedups &lt;source id&gt; [threshold]</code>"
	msgUsageSearch      = "Usage: <code>/search &lt;query&gt;</code>"
	msgInvalidThreshold = "Threshold must be a number between 0 and 1."
	msgSweepBusy        = "Another sweep is already running."
	msgNoResults        = "No results."
	msgNoDuplicates     = "No potential duplicates."
	errGenericFmt       = "❌ Error: %s"
)

const helpText = `<b>News dedup admin</b>

/sweep - report duplicates without removing them
/sweep_apply - remove duplicates
/addsource &lt;url&gt; [category] - register a feed
/sourcedups &lt;source id&gt; [threshold] - sources resembling a source
/domains - domains with several sources
/search &lt;query&gt; - search indexed articles
/reindex [full] - push articles to the search index`
