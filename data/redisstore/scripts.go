package redisstore

// Each lifecycle transition is one Lua script: the script re-derives the
// recorded facts, compares them against the facts the caller read, and
// only then applies every effect of the transition. A mismatch applies
// nothing and reports "conflict", which the store surfaces as a
// ConflictError (lost conditional write).
//
// Shared KEYS prefix for every transition script:
//   KEYS[1] waitlist:member:<event>:<uid>
//   KEYS[2] invite:current:<event>:<uid>
//   KEYS[3] admitted:entry:<event>:<uid>
// Shared ARGV prefix (the caller's read of the facts):
//   ARGV[1] expected waitlisted ("0"/"1")
//   ARGV[2] expected current invitation id ("" if none)
//   ARGV[3] expected invitation status ("" if none)
//   ARGV[4] expected admitted ("0"/"1")

const factsGuard = `
local waitlisted = tostring(redis.call('EXISTS', KEYS[1]))
local curinv = redis.call('GET', KEYS[2])
if not curinv then curinv = '' end
local curstatus = ''
if curinv ~= '' then
  curstatus = redis.call('HGET', 'invite:' .. curinv, 'status') or ''
end
local admitted = tostring(redis.call('EXISTS', KEYS[3]))
if waitlisted ~= ARGV[1] or curinv ~= ARGV[2] or curstatus ~= ARGV[3] or admitted ~= ARGV[4] then
  return 'conflict'
end
`

// joinScript — NONE/DECLINED -> WAITLISTED. A resolved or stale current
// invitation is detached so the pair starts a fresh cycle.
//   KEYS[4] waitlist:<event>
//   ARGV[5] uid, ARGV[6] joined_at (unix ms)
const joinScript = factsGuard + `
if waitlisted == '1' then
  return 'already_joined'
end
redis.call('DEL', KEYS[2])
redis.call('RPUSH', KEYS[4], ARGV[5])
redis.call('HSET', KEYS[1], 'joined_at', ARGV[6])
return 'ok'
`

// leaveScript — WAITLISTED/EXPIRED_INVITATION -> NONE.
//   KEYS[4] waitlist:<event>
//   ARGV[5] uid
const leaveScript = factsGuard + `
redis.call('LREM', KEYS[4], 0, ARGV[5])
redis.call('DEL', KEYS[1])
return 'ok'
`

// inviteScript — WAITLISTED/EXPIRED_INVITATION -> INVITED.
//   KEYS[4] invite:<new id>
//   KEYS[5] invites:user:<uid>
//   KEYS[6] invites:event:<event>
//   KEYS[7] invites:pending
//   ARGV[5] invitation id, ARGV[6] event id, ARGV[7] uid,
//   ARGV[8] issued_at (unix ms), ARGV[9] expires_at (unix ms)
const inviteScript = factsGuard + `
redis.call('HSET', KEYS[4],
  'id', ARGV[5], 'event_id', ARGV[6], 'uid', ARGV[7],
  'status', 'pending', 'issued_at', ARGV[8], 'expires_at', ARGV[9])
redis.call('SET', KEYS[2], ARGV[5])
redis.call('SADD', KEYS[5], ARGV[5])
redis.call('SADD', KEYS[6], ARGV[5])
redis.call('SADD', KEYS[7], ARGV[5])
return 'ok'
`

// acceptScript — INVITED -> ADMITTED. Re-checks expiry at write time so a
// window crossing between read and write is rejected, not applied.
//   KEYS[4] invite:<id>
//   KEYS[5] waitlist:<event>
//   KEYS[6] admitted:<event>
//   KEYS[7] admitted:user:<uid>
//   KEYS[8] invites:pending
//   ARGV[5] invitation id, ARGV[6] uid, ARGV[7] event id, ARGV[8] now (unix ms)
const acceptScript = factsGuard + `
local expires = tonumber(redis.call('HGET', KEYS[4], 'expires_at') or '0')
if tonumber(ARGV[8]) > expires then
  return 'conflict'
end
redis.call('HSET', KEYS[4], 'status', 'accepted')
redis.call('SREM', KEYS[8], ARGV[5])
redis.call('HSET', KEYS[3], 'admitted_at', ARGV[8], 'accepted_at', ARGV[8])
redis.call('SADD', KEYS[6], ARGV[6])
redis.call('SADD', KEYS[7], ARGV[7])
redis.call('LREM', KEYS[5], 0, ARGV[6])
redis.call('DEL', KEYS[1])
return 'ok'
`

// declineScript — INVITED -> DECLINED.
//   KEYS[4] invite:<id>
//   KEYS[5] waitlist:<event>
//   KEYS[6] invites:pending
//   ARGV[5] invitation id, ARGV[6] uid, ARGV[7] now (unix ms)
const declineScript = factsGuard + `
local expires = tonumber(redis.call('HGET', KEYS[4], 'expires_at') or '0')
if tonumber(ARGV[7]) > expires then
  return 'conflict'
end
redis.call('HSET', KEYS[4], 'status', 'declined')
redis.call('SREM', KEYS[6], ARGV[5])
redis.call('LREM', KEYS[5], 0, ARGV[6])
redis.call('DEL', KEYS[1])
return 'ok'
`

// admitScript — WAITLISTED/NONE/EXPIRED_INVITATION -> ADMITTED, direct
// admission without an invitation round-trip.
//   KEYS[4] waitlist:<event>
//   KEYS[5] admitted:<event>
//   KEYS[6] admitted:user:<uid>
//   ARGV[5] uid, ARGV[6] event id, ARGV[7] now (unix ms)
const admitScript = factsGuard + `
redis.call('HSET', KEYS[3], 'admitted_at', ARGV[7])
redis.call('SADD', KEYS[5], ARGV[5])
redis.call('SADD', KEYS[6], ARGV[6])
redis.call('LREM', KEYS[4], 0, ARGV[5])
redis.call('DEL', KEYS[1])
return 'ok'
`

// expireScript — observational: drops the invitation from the pending
// sweep set once its expiry has been noticed, so it is notified once.
//   KEYS[4] invite:<id>
//   KEYS[5] invites:pending
//   ARGV[5] invitation id, ARGV[6] now (unix ms)
const expireScript = factsGuard + `
local status = redis.call('HGET', KEYS[4], 'status') or ''
local expires = tonumber(redis.call('HGET', KEYS[4], 'expires_at') or '0')
if status ~= 'pending' or tonumber(ARGV[6]) <= expires then
  return 'conflict'
end
redis.call('SREM', KEYS[5], ARGV[5])
return 'ok'
`
