package mcp

import "github.com/mark3labs/mcp-go/mcp"

var captureToolDef = mcp.NewTool("claimstore_capture",
	mcp.WithDescription("Run a payload through the claim store. Bodies above the claim size threshold are persisted under the check-in directory and replaced by a check-in token document; smaller bodies pass through untouched."),
	mcp.WithString("content", mcp.Description("Inline payload. Exactly one of content or path is required.")),
	mcp.WithString("path", mcp.Description("Path of a file to read the payload from.")),
	mcp.WithString("modes", mcp.Description("Tracking modes, comma separated: body, claim, archive. Default: claim.")),
	mcp.WithString("archive_target", mcp.Description("Archive destination. Implies archive mode.")),
)

var redeemToolDef = mcp.NewTool("claimstore_redeem",
	mcp.WithDescription("Resolve a claim-check token to the content it references. Store-local references are read from the check-out directory; file, http(s) and s3 references are fetched."),
	mcp.WithString("token", mcp.Description("Claim-check token XML document. Exactly one of token or reference is required.")),
	mcp.WithString("reference", mcp.Description("Reference to redeem: a store token such as 20261019/01J..., a path, or a URL.")),
	mcp.WithNumber("max_bytes", mcp.Description("Maximum content bytes returned (default 1048576, max 16777216). The body is always read fully.")),
	mcp.WithString("archive_target", mcp.Description("Hand the redeemed content off to the archiver with this target.")),
)

var inventoryToolDef = mcp.NewTool("claimstore_inventory",
	mcp.WithDescription("List persisted payloads and archive jobs under the check-in directory."),
	mcp.WithString("partition", mcp.Description("Date partition (yyyyMMdd). Omit to list every partition.")),
)

var jobsToolDef = mcp.NewTool("claimstore_jobs",
	mcp.WithDescription("List pending archive job descriptors with their source and target."),
)

var catalogToolDef = mcp.NewTool("claimstore_catalog",
	mcp.WithDescription("Query the catalog of committed captures, newest first."),
	mcp.WithString("token", mcp.Description("Fetch the record of a single token.")),
	mcp.WithString("partition", mcp.Description("Date partition (yyyyMMdd) filter.")),
	mcp.WithNumber("limit", mcp.Description("Maximum records (default 50, max 500).")),
)

var configGetToolDef = mcp.NewTool("claimstore_config_get",
	mcp.WithDescription("Resolve a configuration property through the environment, the property store and the config file, in that order."),
	mcp.WithString("property", mcp.Required(), mcp.Description("Property name, e.g. claim_size_threshold.")),
	mcp.WithString("application", mcp.Description("Application the property belongs to. Default: the store's application.")),
)

var configSetToolDef = mcp.NewTool("claimstore_config_set",
	mcp.WithDescription("Store a configuration property. The claim store picks it up on its next capture."),
	mcp.WithString("property", mcp.Required(), mcp.Description("Property name: check_in_directory, check_out_directory or claim_size_threshold.")),
	mcp.WithString("value", mcp.Required(), mcp.Description("Property value.")),
	mcp.WithString("application", mcp.Description("Application the property belongs to. Default: the store's application.")),
)
