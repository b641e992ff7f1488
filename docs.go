/*
Package commontags finds the descriptive tags shared by the profile
pictures of a group of users.

A search runs as a fixed pipeline of explicit promises:

	profiles (one per handle) + token ──► barrier ──► avatar URLs
	avatar URLs ──► tag each image with the shared token ──► barrier ──► intersection

Profile lookup, tagger authentication and image tagging are collaborators
behind small interfaces. The profiles and tagger packages provide HTTP
implementations; tests and callers can supply their own.

Example:
	s := commontags.New(profilesClient, authenticator, taggerClient,
		commontags.WithLogger(log))
	tags, err := s.SearchCommonTags(ctx, []string{"alice", "bob"}).Wait()

A search is all-or-nothing. The first failing call rejects the result with
its own error and cancels the context of every call still running. There
are no retries and nothing is cached between searches.
*/
package commontags
