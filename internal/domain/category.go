package domain

// Category is the notification type. It drives default translation keys and
// the preference bucket that gates each channel.
type Category string

const (
	CategoryLike                  Category = "like"
	CategoryComment               Category = "comment"
	CategoryCommentReply          Category = "comment_reply"
	CategoryMention               Category = "mention"
	CategoryPostShare             Category = "post_share"
	CategoryFriendRequest         Category = "friend_request"
	CategoryFriendRequestAccepted Category = "friend_request_accepted"
	CategoryFollow                Category = "follow"
	CategoryWorkoutInvite         Category = "workout_invite"
	CategoryWorkoutJoin           Category = "workout_join"
	CategoryWorkoutLeave          Category = "workout_leave"
	CategoryWorkoutCancelled      Category = "workout_cancelled"
	CategoryWorkoutUpdated        Category = "workout_updated"
	CategoryWorkoutReminder       Category = "workout_reminder"
	CategoryWorkoutCompleted      Category = "workout_completed"
	CategoryWorkoutProposal       Category = "workout_proposal"
	CategoryProposalVote          Category = "proposal_vote"
	CategoryProposalAccepted      Category = "proposal_accepted"
	CategoryProgramFork           Category = "program_fork"
	CategoryProgramLike           Category = "program_like"
	CategoryProgramShared         Category = "program_shared"
	CategoryGymAnnouncement       Category = "gym_announcement"
	CategoryGymMembership         Category = "gym_membership"
	CategoryGymEvent              Category = "gym_event"
	CategoryAchievementUnlocked   Category = "achievement_unlocked"
	CategoryStreakMilestone       Category = "streak_milestone"
	CategoryPersonalRecord        Category = "personal_record"
	CategoryChallengeInvite       Category = "challenge_invite"
	CategoryChallengeCompleted    Category = "challenge_completed"
	CategoryGroupInvite           Category = "group_invite"
	CategoryGroupMessage          Category = "group_message"
	CategorySystemUpdate          Category = "system_update"
	CategorySecurityAlert         Category = "security_alert"
	CategoryWeeklySummary         Category = "weekly_summary"
	CategoryWelcome               Category = "welcome"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryLike, CategoryComment, CategoryCommentReply, CategoryMention, CategoryPostShare,
	CategoryFriendRequest, CategoryFriendRequestAccepted, CategoryFollow,
	CategoryWorkoutInvite, CategoryWorkoutJoin, CategoryWorkoutLeave, CategoryWorkoutCancelled,
	CategoryWorkoutUpdated, CategoryWorkoutReminder, CategoryWorkoutCompleted,
	CategoryWorkoutProposal, CategoryProposalVote, CategoryProposalAccepted,
	CategoryProgramFork, CategoryProgramLike, CategoryProgramShared,
	CategoryGymAnnouncement, CategoryGymMembership, CategoryGymEvent,
	CategoryAchievementUnlocked, CategoryStreakMilestone, CategoryPersonalRecord,
	CategoryChallengeInvite, CategoryChallengeCompleted,
	CategoryGroupInvite, CategoryGroupMessage,
	CategorySystemUpdate, CategorySecurityAlert, CategoryWeeklySummary, CategoryWelcome,
}

// Known reports whether c is one of the enumerated categories.
// Unknown categories are still accepted by the orchestrator.
func (c Category) Known() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// DefaultTitleKey is the translation key used when the caller supplies none.
func (c Category) DefaultTitleKey() string { return "notification." + string(c) + ".title" }

// DefaultBodyKey is the translation key used when the caller supplies none.
func (c Category) DefaultBodyKey() string { return "notification." + string(c) + ".body" }

// EmailSubjectKey is the email-specific subject key.
func (c Category) EmailSubjectKey() string { return "notification." + string(c) + ".email_subject" }

// EmailBodyKey is the email-specific body key.
func (c Category) EmailBodyKey() string { return "notification." + string(c) + ".email_body" }

// Bucket is a coarse preference group sharing one toggle per channel.
type Bucket string

const (
	BucketLikes              Bucket = "likes"
	BucketComments           Bucket = "comments"
	BucketMentions           Bucket = "mentions"
	BucketShares             Bucket = "shares"
	BucketFriendRequests     Bucket = "friend_requests"
	BucketFollows            Bucket = "follows"
	BucketWorkoutInvites     Bucket = "workout_invites"
	BucketWorkoutUpdates     Bucket = "workout_updates"
	BucketReminders          Bucket = "reminders"
	BucketWorkoutProposals   Bucket = "workout_proposals"
	BucketProgramActivities  Bucket = "program_activities"
	BucketGymUpdates         Bucket = "gym_updates"
	BucketAchievements       Bucket = "achievements"
	BucketChallenges         Bucket = "challenges"
	BucketGroups             Bucket = "groups"
	BucketMessages           Bucket = "messages"
	BucketSystem             Bucket = "system"
	BucketWeeklySummary      Bucket = "weekly_summary"
)

// Buckets lists every preference bucket.
var Buckets = []Bucket{
	BucketLikes, BucketComments, BucketMentions, BucketShares, BucketFriendRequests,
	BucketFollows, BucketWorkoutInvites, BucketWorkoutUpdates, BucketReminders,
	BucketWorkoutProposals, BucketProgramActivities, BucketGymUpdates, BucketAchievements,
	BucketChallenges, BucketGroups, BucketMessages, BucketSystem, BucketWeeklySummary,
}

// categoryBuckets is the fixed category → bucket table. Categories missing
// here (security_alert) have no toggle and are always delivered.
var categoryBuckets = map[Category]Bucket{
	CategoryLike:                  BucketLikes,
	CategoryProgramLike:           BucketLikes,
	CategoryComment:               BucketComments,
	CategoryCommentReply:          BucketComments,
	CategoryMention:               BucketMentions,
	CategoryPostShare:             BucketShares,
	CategoryProgramShared:         BucketShares,
	CategoryFriendRequest:         BucketFriendRequests,
	CategoryFriendRequestAccepted: BucketFriendRequests,
	CategoryFollow:                BucketFollows,
	CategoryWorkoutInvite:         BucketWorkoutInvites,
	CategoryWorkoutJoin:           BucketWorkoutUpdates,
	CategoryWorkoutLeave:          BucketWorkoutUpdates,
	CategoryWorkoutCancelled:      BucketWorkoutUpdates,
	CategoryWorkoutUpdated:        BucketWorkoutUpdates,
	CategoryWorkoutCompleted:      BucketWorkoutUpdates,
	CategoryWorkoutReminder:       BucketReminders,
	CategoryWorkoutProposal:       BucketWorkoutProposals,
	CategoryProposalVote:          BucketWorkoutProposals,
	CategoryProposalAccepted:      BucketWorkoutProposals,
	CategoryProgramFork:           BucketProgramActivities,
	CategoryGymAnnouncement:       BucketGymUpdates,
	CategoryGymMembership:         BucketGymUpdates,
	CategoryGymEvent:              BucketGymUpdates,
	CategoryAchievementUnlocked:   BucketAchievements,
	CategoryStreakMilestone:       BucketAchievements,
	CategoryPersonalRecord:        BucketAchievements,
	CategoryChallengeInvite:       BucketChallenges,
	CategoryChallengeCompleted:    BucketChallenges,
	CategoryGroupInvite:           BucketGroups,
	CategoryGroupMessage:          BucketMessages,
	CategorySystemUpdate:          BucketSystem,
	CategoryWelcome:               BucketSystem,
	CategoryWeeklySummary:         BucketWeeklySummary,
}

// Bucket returns the preference bucket for c, or false when c has none.
func (c Category) Bucket() (Bucket, bool) {
	b, ok := categoryBuckets[c]
	return b, ok
}

// ValidBucket reports whether b is a known bucket name.
func ValidBucket(b Bucket) bool {
	for _, k := range Buckets {
		if k == b {
			return true
		}
	}
	return false
}
