// flags.go defines constants for all CLI flag names.
//
// Naming convention: Flag<PascalCaseName> where name matches the kebab-case
// CLI flag (e.g., "only-metadata" -> FlagOnlyMetadata).

package extension

// Flag name constants for CLI commands.
const (
	// Boolean flags

	FlagAllocate     = "allocate"      // Allocate a fresh code
	FlagDiff         = "diff"          // Show diffs
	FlagDryRun       = "dry-run"       // Show what would happen
	FlagHidden       = "hidden"        // Include hidden files
	FlagLocal        = "local"         // Use local scope (gitignored)
	FlagLong         = "long"          // Long format with metadata
	FlagNumber       = "number"        // Number output lines
	FlagOnce         = "once"          // Process once and exit
	FlagOnlyMetadata = "only-metadata" // Load records without content
	FlagRaw          = "raw"           // Raw output without formatting
	FlagShare        = "share"         // Mark as shared (committed)

	// String flags

	FlagCode        = "code"        // Store under an explicit code
	FlagDescription = "description" // Revision description
	FlagFormat      = "format"      // Requested output format
	FlagLines       = "lines"       // Line range (e.g., "10:20")
	FlagMimetype    = "mimetype"    // Override detected mimetype
	FlagName        = "name"        // Filename for stdin content
	FlagRevisions   = "revisions"   // Revision range (e.g., "3:5")
	FlagSave        = "save"        // Write content to a file or directory
	FlagTag         = "tag"         // Tag filter/value

	// Integer and duration flags

	FlagConcurrency = "concurrency" // Parallel workers
	FlagDebounce    = "debounce"    // Quiet period before processing
	FlagLimit       = "limit"       // Maximum entries shown
	FlagRevision    = "revision"    // Specific revision number
	FlagRule        = "rule"        // Rule id
)
