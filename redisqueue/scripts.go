package redisqueue

import "github.com/redis/go-redis/v9"

// KEYS: subjects hash, queue zset, sequence, item hash, queue names set
// ARGV: id, subject, queue, payload
var pushScript = redis.NewScript(`
local subjects = KEYS[1]
local queueKey = KEYS[2]
local seqKey = KEYS[3]
local itemKey = KEYS[4]
local namesKey = KEYS[5]

local id = ARGV[1]
local subject = ARGV[2]
local queue = ARGV[3]
local payload = ARGV[4]

if redis.call('HSETNX', subjects, subject, id) == 0 then
    return 0
end

local seq = redis.call('INCR', seqKey)
redis.call('HSET', itemKey, 'queue', queue, 'subject', subject, 'attempts', 0, 'payload', payload)
redis.call('ZADD', queueKey, seq, id)
redis.call('SADD', namesKey, queue)
return 1
`)

// KEYS: item hash
// ARGV: id, key prefix
var deleteScript = redis.NewScript(`
local itemKey = KEYS[1]
local id = ARGV[1]
local prefix = ARGV[2]

local queue = redis.call('HGET', itemKey, 'queue')
if not queue then
    return 0
end
local subject = redis.call('HGET', itemKey, 'subject')

local queueKey = prefix .. ':queue:' .. queue
local subjects = prefix .. ':subjects:' .. queue

redis.call('DEL', itemKey)
redis.call('ZREM', queueKey, id)
if redis.call('HGET', subjects, subject) == id then
    redis.call('HDEL', subjects, subject)
end
if redis.call('ZCARD', queueKey) == 0 then
    redis.call('SREM', prefix .. ':queues', queue)
end
return 1
`)

// KEYS: item hash
var markAttemptScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// KEYS: item hash
// ARGV: payload
var updatePayloadScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
    return 0
end
redis.call('HSET', KEYS[1], 'payload', ARGV[1])
return 1
`)
