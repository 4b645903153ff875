// Package leaderboard is the polling side of toastd: it decodes the backend's
// leaderboard JSON into Player snapshots, fetches it on a cron schedule and
// reports which players changed since the previous snapshot.
package leaderboard
