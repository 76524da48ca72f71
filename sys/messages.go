package sys

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set in .env file"
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgGenericError        = "%v"

	// --- Loader ---
	MsgLoaderSyncCommands       = "Syncing %s commands..."
	MsgLoaderUpToDate           = "Commands are up to date. (Hash: %s)"
	MsgLoaderCleanup            = "[CLEANUP] Removing commands from previous dev guild: %s"
	MsgLoaderDevStarting        = "[DEV] Registering commands to guild: %s"
	MsgLoaderDevRegistered      = "[DEV] Registered: %s"
	MsgLoaderDevFail            = "[DEV] Registration failed: %v"
	MsgLoaderDevGlobalClear     = "[DEV] Verifying global commands are cleared..."
	MsgLoaderDevGlobalClearFail = "[DEV] Global clear skipped (likely rate limited): %v"
	MsgLoaderProdStarting       = "[PROD] Registering commands globally..."
	MsgLoaderProdRegistered     = "[PROD] Registered: %s"
	MsgLoaderProdFail           = "[PROD] Global registration failed: %w"
	MsgLoaderScanStarting       = "[SCAN] Checking all guilds for ghost commands..."
	MsgLoaderScanCleared        = "[SCAN] Cleared ghost commands from: %s (%s)"
	MsgLoaderPanicRecovered     = "Panic recovered in handler: %v"

	// --- Setup persistence ---
	MsgSetupSaved         = "Saved music setup for guild %s (channel %s)"
	MsgSetupRetry         = "Setup write for guild %s failed, retrying in %s: %v"
	MsgSetupRestoreFailed = "Failed to restore music views for guild %s: %v"
	MsgSetupRestored      = "Restored music views for %d guild(s)"

	// --- Music (logs) ---
	MsgMusicEnqueued        = "Queued %q in guild %s at position %d (requested by %s)"
	MsgMusicNowPlaying      = "Now playing %q in guild %s"
	MsgMusicAdvance         = "Track finished in guild %s, %d left in queue"
	MsgMusicIdle            = "Queue drained in guild %s, disconnecting"
	MsgMusicForcedLeave     = "Bot disconnected by external event in guild %s, clearing %d track(s)"
	MsgMusicChannelEmpty    = "No listeners left in guild %s, disconnecting"
	MsgMusicConnectFailed   = "Failed to connect to voice in guild %s: %v"
	MsgMusicPlayFailed      = "Failed to start stream for %q in guild %s: %v"
	MsgMusicRenderFailed    = "Failed to render %s view in guild %s: %v"
	MsgMusicStaleFinish     = "Ignoring stale completion (gen %d, current %d) in guild %s"
	MsgMusicPlayerStopped   = "Stopped player for guild %s"
	MsgMusicPlayerPanic     = "Player loop of guild %s recovered from panic: %v"
	MsgMusicStaleLeave      = "Ignoring voice leave from %s in guild %s (connected to %s)"
	MsgMusicOwnLeave        = "Ignoring echo of own voice leave from %s in guild %s"
	MsgMusicRefreshed       = "Redrew music views in guild %s"
	MsgMusicRejoined        = "Ignoring voice leave in guild %s, already connected again"
	MsgResolverFailed       = "Failed to resolve %q: %v"
	MsgResolverSearch       = "Searching %q (%d results)"
	MsgResolverDirect       = "Resolving %s"
	MsgResolverSuggestError = "Suggestion backend %s failed: %v"

	// --- Music (user-facing) ---
	ErrMusicNotInVoice    = "You are not connected to a voice channel."
	ErrMusicNotWithBot    = "The bot is already playing in another voice channel."
	ErrMusicQueueFull     = "The queue is full (%d tracks). Wait for a track to finish."
	ErrMusicNothingFound  = "Nothing was found for that query."
	ErrMusicResolveFailed = "Could not load that track. Check the link and try again."
	ErrMusicConnectFailed = "Could not join your voice channel."
	ErrMusicRateLimited   = "You are doing that too fast. Try again in a moment."
	ErrMusicGuildOnly     = "This command can only be used in a server."
	ErrMusicAdminOnly     = "This command is only available to server administrators."
	ErrMusicSetupFailed   = "Failed to save the music channel setup: %v"
	ErrMusicNotReady      = "The music system is still starting up."
	ErrMusicSelectExpired = "This selection has expired."
	ErrMusicNotYours      = "Only the person who searched can pick a result."
	ErrMusicNothingToSkip = "Nothing is playing."
	ErrMusicStaleControl  = "That control belongs to a track that already ended."
	ErrMusicPlayFailed    = "None of the tracks could be played."

	MsgMusicQueued        = "Added to queue at position **%d**: [%s](%s) (%s)"
	MsgMusicQueuedMany    = "Added **%d** tracks to the queue."
	MsgMusicStarted       = "Now playing: [%s](%s) (%s)"
	MsgMusicSkipped       = "Skipped."
	MsgMusicStopped       = "Disconnected."
	MsgMusicSetupStarting = "Setting up the music channel..."
	MsgMusicSetupDone     = "This channel is now the music channel."
	MsgMusicSetupTopic    = "Music channel of %s"
	MsgMusicAddTitle      = "Add a track"
	MsgMusicAddLabel      = "Link or search phrase"
	MsgMusicAddHint       = "A YouTube link, a playlist or a few words"
	MsgMusicPicked        = "Selected **%d.** %s"
	MsgMusicIdleTitle     = "### Nothing is playing"
	MsgMusicCurrentLine   = "Now playing: %s · `%s`"
	MsgMusicIdleBody      = "Join a voice channel and use `/play` to start the music."
	MsgMusicQueueTitle    = "### Queue (%d/%d)"
	MsgMusicQueueEmpty    = "_The queue is empty._"
	MsgMusicSearchTitle   = "### Results for `%s`"
	MsgMusicSearchPrompt  = "Pick a track"
	MsgMusicRequestedBy   = "Requested by <@%s>"
	MsgMusicViewFinished  = "-# Finished"
	MsgMusicViewExpired   = "-# Controls expired"
	MsgMusicPickExpired   = "-# Selection expired"

	// --- Music (handler logs) ---
	MsgMusicCommandFailed  = "Music command %s failed in guild %s: %v"
	MsgMusicSetupTopicErr  = "Failed to set music channel topic in guild %s: %v"
	MsgMusicExpiryFailed   = "Failed to expire controls on message %s: %v"
	MsgMusicReplyFailed    = "Failed to answer interaction: %v"
	MsgMusicSetupLockErr   = "Failed to restrict the music channel in guild %s: %v"
	MsgMusicSetupAttachErr = "Failed to draw the music channel views in guild %s: %v"
)
